package scm

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// Records are content-addressed, so their encoding must be deterministic.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes v as deterministic CBOR.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}

// GetCBOR reads the blob at key and decodes it into v.
// It reports false if the key is absent.
func GetCBOR(ctx context.Context, g Blobstore, key string, v interface{}) (bool, error) {
	b, ok, err := g.Get(ctx, key)
	if err != nil || !ok {
		return false, errors.Wrapf(err, "getting %s", key)
	}
	if err := Unmarshal(b, v); err != nil {
		return false, &DecodeError{Key: key, Err: err}
	}
	return true, nil
}

// DecodeError is returned by GetCBOR for a stored blob that is not a valid record.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return "decoding " + e.Key + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PutCBOR encodes v and stores it at key.
func PutCBOR(ctx context.Context, s Blobstore, key string, v interface{}) error {
	b, err := Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	return errors.Wrapf(s.Put(ctx, key, b), "storing %s", key)
}
