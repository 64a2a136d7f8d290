package types

import "golang.org/x/xerrors"

var (
	// ErrMalformedCoordinates is returned when a coordinate string lacks group, artifact or version.
	ErrMalformedCoordinates = xerrors.New("malformed coordinates")

	// ErrNameVersionDetection is returned when name and version can't be detected from a file name.
	ErrNameVersionDetection = xerrors.New("name and version detection failed")

	// ErrMissingPackageURL is returned when the group should come from package metadata without a URL.
	ErrMissingPackageURL = xerrors.New("package URL not present in package metadata")

	// ErrProfileNotFound is returned when no staging profile has the requested name.
	ErrProfileNotFound = xerrors.New("staging profile not found")

	ErrInvalidArgument   = xerrors.New("invalid argument")
	ErrMalformedMetadata = xerrors.New("malformed artifact metadata")
	ErrMissingFilelist   = xerrors.New("filelist not found in staging repository")
)
