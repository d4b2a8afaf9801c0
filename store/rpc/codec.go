// Package rpc exposes a Blobstore over gRPC.
//
// Messages are plain Go structs carried with a CBOR codec,
// so no generated code is needed.
package rpc

import (
	"google.golang.org/grpc/encoding"

	"github.com/bobg/scm"
)

const codecName = "scm-cbor"

type codec struct{}

func (codec) Marshal(v any) ([]byte, error)      { return scm.Marshal(v) }
func (codec) Unmarshal(data []byte, v any) error { return scm.Unmarshal(data, v) }
func (codec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(codec{})
}

type (
	keyRequest struct {
		Key string `cbor:"1,keyasint"`
	}

	getResponse struct {
		Blob  []byte `cbor:"1,keyasint"`
		Found bool   `cbor:"2,keyasint"`
	}

	putRequest struct {
		Key  string `cbor:"1,keyasint"`
		Blob []byte `cbor:"2,keyasint"`
	}

	putResponse struct{}

	presentResponse struct {
		Present bool `cbor:"1,keyasint"`
	}

	listKeysRequest struct {
		Start string `cbor:"1,keyasint"`
	}

	listKeysResponse struct {
		Key string `cbor:"1,keyasint"`
	}
)
