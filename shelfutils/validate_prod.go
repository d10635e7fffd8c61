//go:build !debug_shelf_utils

package shelfutils

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_shelf_utils build tag is present
func DebugValidate(validatable Validatable) {
}
