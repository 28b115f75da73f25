package transfer

import (
	"fmt"
	"path"
	"strings"
)

// toFSPath joins a wire-supplied virtual path under root, rejecting
// anything that could escape root. The original implementation this
// protocol was distilled from only rejected paths containing the
// literal substring "::", which does not actually stop "../escape" or
// an absolute path — this is the tightened replacement spec.md §9
// calls for: reject any ".." component, any absolute path, and any
// embedded NUL byte.
func toFSPath(root, virtualPath string) (string, error) {
	if strings.Contains(virtualPath, "\x00") {
		return "", fmt.Errorf("path %q contains a NUL byte", virtualPath)
	}

	if path.IsAbs(virtualPath) {
		return "", fmt.Errorf("path %q is absolute", virtualPath)
	}
	if len(virtualPath) >= 2 && virtualPath[1] == ':' {
		// Reject Windows drive-letter absolute paths too, since the
		// wire format is always "/"-separated regardless of host OS.
		return "", fmt.Errorf("path %q is absolute", virtualPath)
	}
	for _, component := range strings.Split(virtualPath, "/") {
		if component == ".." {
			return "", fmt.Errorf("path %q contains a `..` component", virtualPath)
		}
	}

	fsPath := path.Join(root, virtualPath)
	if fsPath != root && !strings.HasPrefix(fsPath, root+"/") {
		return "", fmt.Errorf("path %q escapes destination root", virtualPath)
	}

	return fsPath, nil
}
