/*package lib contains the configuration, validation, and driver code used by
the pstructs binary. The particle structures themselves and the machinery they
depend on live in lib/'s subpackages.
*/
package lib

import (
	"github.com/npillmayer/schuko/tracing"
)

var (
	// Version is the version of the software.
	Version uint64 = 0x1
)

// tracer writes to trace with key 'pstructs'
func tracer() tracing.Trace {
	return tracing.Select("pstructs")
}
