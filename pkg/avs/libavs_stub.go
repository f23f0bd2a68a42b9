//go:build !libavs

package avs

import "errors"

// OpenLibrary returns the real vendor library binding. This build was
// made without the libavs tag, so only the simulator is available.
func OpenLibrary() (Library, error) {
	return nil, errors.New("built without libavs support: rebuild with -tags libavs, or run in simulation mode")
}
