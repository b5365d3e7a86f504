// SPDX-License-Identifier: MIT

package tree

import "errors"

// Sentinel structural errors, mirrored from Error::Code in
// original_source/src/pathspace/core/Error.hpp. The root package's
// Error/Code type (SPEC_FULL.md §6.6) wraps these with path context.
var (
	ErrNoSuchPath              = errors.New("pathspace: no such path")
	ErrInvalidPathSubcomponent = errors.New("pathspace: sub-component name is data")
	ErrGlobSpaceInsert         = errors.New("pathspace: spaces cannot be inserted via glob expressions")
)
