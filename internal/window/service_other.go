//go:build darwin

package window

func newPlatformService() (Service, error) {
	return nil, ErrUnsupported
}
