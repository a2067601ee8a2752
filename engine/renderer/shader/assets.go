package shader

import (
	"embed"
	"fmt"
)

//go:embed assets/*.wgsl
var assets embed.FS

// AssetSource returns the raw source of an embedded WGSL asset.
//
// Parameters:
//   - name: file name within the assets directory
//
// Returns:
//   - string: the unprocessed source
//   - error: if no asset has that name
func AssetSource(name string) (string, error) {
	data, err := assets.ReadFile("assets/" + name)
	if err != nil {
		return "", fmt.Errorf("shader asset %q: %w", name, err)
	}
	return string(data), nil
}

// AssetNames lists the embedded WGSL assets.
func AssetNames() ([]string, error) {
	entries, err := assets.ReadDir("assets")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
