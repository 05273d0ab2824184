package payments

import (
	"io"
)

// readBytes drains and closes the body
func readBytes(in io.ReadCloser) ([]byte, error) {
	body, err := io.ReadAll(in)
	_ = in.Close()
	if err != nil {
		return nil, err
	}

	return body, nil
}

// readString drains the body, best effort
func readString(in io.ReadCloser) string {
	body, err := io.ReadAll(in)
	_ = in.Close()
	if err != nil {
		return ""
	}

	return string(body)
}
