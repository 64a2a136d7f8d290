package artifact

import (
	"github.com/cavaliergopher/rpm"
	"golang.org/x/xerrors"
)

// RPMReader reads RPM package headers.
type RPMReader struct{}

func (RPMReader) ReadPackageHeaders(path string) (PackageHeaders, error) {
	pkg, err := rpm.Open(path)
	if err != nil {
		return PackageHeaders{}, xerrors.Errorf("unable to open rpm %s: %w", path, err)
	}
	return PackageHeaders{
		Name:    pkg.Name(),
		Version: pkg.Version(),
		Release: pkg.Release(),
		URL:     pkg.URL(),
	}, nil
}
