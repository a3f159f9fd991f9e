/*package pstruct contains particle structures: containers which store a changing
population of particles grouped by the mesh element that owns them.

The main structure is CabM. It stores particles in fixed-width blocks, each of
which belongs to exactly one element, so that a kernel can sweep over blocks
without ever crossing an element boundary. The layout is never patched in
place. Whenever particles change element (Rebuild) or change process (Migrate)
the layout and storage are recomputed from scratch and swapped in once they are
fully populated.

A CabM is not safe for concurrent use. Each public operation must finish before
the next one starts, although most of them split their work across the workers
configured in lib/thread.
*/
package pstruct

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'pstruct'
func tracer() tracing.Trace {
	return tracing.Select("pstruct")
}
