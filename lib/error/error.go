/*package error contains the error classes used by pstructs and simple functions
for reporting fatal errors.

Library code never exits. It returns errors marked with one of the classes
below and the calling program decides whether to die, usually through Check.
*/
package error

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

// Error classes. Use errors.Is to test which class an error belongs to.
var (
	// ErrPrecondition marks input array length mismatches and other contract
	// violations that are checked on entry.
	ErrPrecondition = errors.New("precondition violation")
	// ErrUndefinedUsage marks caller-supplied data that disagrees with the
	// layout it is being placed into, e.g. fill arrays inconsistent with the
	// per-element counts.
	ErrUndefinedUsage = errors.New("undefined usage")
	// ErrUnresolvedGlobalID marks an element global id that is not resident
	// on this process.
	ErrUnresolvedGlobalID = errors.New("unresolved global id")
	// ErrUnsupported marks operations on a structure variant that was not
	// built into this binary.
	ErrUnsupported = errors.New("unsupported configuration")
	// ErrConfig marks errors a user can fix by changing their config file or
	// command line.
	ErrConfig = errors.New("configuration error")
)

// Preconditionf returns a new error marked with ErrPrecondition.
func Preconditionf(format string, a ...interface{}) error {
	return errors.Mark(errors.Newf(format, a...), ErrPrecondition)
}

// Undefinedf returns a new error marked with ErrUndefinedUsage.
func Undefinedf(format string, a ...interface{}) error {
	return errors.Mark(errors.Newf(format, a...), ErrUndefinedUsage)
}

// Unresolvedf returns a new error marked with ErrUnresolvedGlobalID.
func Unresolvedf(format string, a ...interface{}) error {
	return errors.Mark(errors.Newf(format, a...), ErrUnresolvedGlobalID)
}

// Unsupportedf returns a new error marked with ErrUnsupported.
func Unsupportedf(format string, a ...interface{}) error {
	return errors.Mark(errors.Newf(format, a...), ErrUnsupported)
}

// Configf returns a new error marked with ErrConfig.
func Configf(format string, a ...interface{}) error {
	return errors.Mark(errors.Newf(format, a...), ErrConfig)
}

// External reports an error to stderr and kills the program. It should be
// used when an error is something a user could reasonbly be expected to fix
// through changes in configuration/data/environement. It has the same
// signature at the standard fmt.*printf() functions.
func External(format string, a ...interface{}) {
	log.Printf("pstructs exited early with the following error:\n"+format, a...)
	os.Exit(1)
}

// Internal reports an error to stderr along with a stack trace and kills the
// program. It should be used when the error requires a code dive to fix. It
// has the same signature at the standard fmt.*printf() functions.
func Internal(format string, a ...interface{}) {
	log.Println("pstructs exited early with the following error:")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n\n")
	debug.PrintStack()
	os.Exit(1)
}

// Check kills the program if err is non-nil. Configuration errors are
// reported with External and everything else with Internal, since a
// precondition failure, an unresolved global id or a failed exchange all mean
// that some invariant upstream was broken.
func Check(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrConfig) {
		External("%s", err.Error())
	}
	Internal("%+v", err)
}
