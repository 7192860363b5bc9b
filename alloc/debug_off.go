//go:build !smallobjdebug

package alloc

// debugChecks enables the assertions compiled into smallobjdebug builds.
const debugChecks = false
