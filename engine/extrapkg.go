package engine

import (
	"os"
	"path/filepath"
	"strings"
)

// metainfoVirtualDir is where the synthetic "+extra-metainfo" package
// presents its overlay files, matching the real location a composer
// would search (spec §4.4/§4.5).
const metainfoVirtualDir = "/usr/share/metainfo/"

// listMetainfoFiles returns the virtual paths of every ".metainfo.xml"
// (or ".appdata.xml") file in dir, non-recursively: the overlay
// directory is operator-maintained and flat.
func listMetainfoFiles(dir string) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".metainfo.xml") || strings.HasSuffix(name, ".appdata.xml") {
			out = append(out, metainfoVirtualDir+name)
		}
	}
	return out
}

// readOverlayFile maps a virtual path back to its on-disk file under
// dir. A miss returns the one-byte "absent" sentinel (spec §9).
func readOverlayFile(dir, path string) ([]byte, error) {
	if !strings.HasPrefix(path, metainfoVirtualDir) {
		return []byte{0}, nil
	}
	name := strings.TrimPrefix(path, metainfoVirtualDir)
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return []byte{0}, nil
	}
	return b, nil
}
