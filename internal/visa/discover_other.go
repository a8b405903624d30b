//go:build !linux

package visa

// discover finds nothing on platforms without a usbtmc driver; LAN instruments
// are registered with WithStaticResources.
func (rm *ResourceManager) discover() []string {
	return nil
}
