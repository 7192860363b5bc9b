//go:build smallobjdebug

package alloc

const debugChecks = true
