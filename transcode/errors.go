package transcode

import "fmt"

// DecodeError means the input is not a supported raster image.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s image: %s", e.Format, e.Err)
	}
	return fmt.Sprintf("decode image: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedEnvironmentError means no working encoder is available.
type UnsupportedEnvironmentError struct {
	Err error
}

func (e *UnsupportedEnvironmentError) Error() string {
	return fmt.Sprintf("webp encoding unavailable: %s", e.Err)
}

func (e *UnsupportedEnvironmentError) Unwrap() error {
	return e.Err
}
