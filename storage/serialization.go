// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragkit/core"
)

// Field serializers for Document, composed from the MUS format primitives.
var (
	embeddingMUS = ord.NewSliceSer[float32](varint.Float32)
	metadataMUS  = ord.NewMapSer[string, string](ord.String, ord.String)
)

// documentMUS serializes core.Document in MUS format: fields in declaration
// order, strings and collections length-prefixed.
type documentMUS struct{}

// DocumentMUS is the MUS serializer for core.Document.
var DocumentMUS = documentMUS{}

func (documentMUS) Size(doc core.Document) int {
	return ord.String.Size(doc.ID) +
		ord.String.Size(doc.Content) +
		metadataMUS.Size(doc.Metadata) +
		embeddingMUS.Size(doc.Embedding)
}

func (documentMUS) Marshal(doc core.Document, bs []byte) int {
	n := ord.String.Marshal(doc.ID, bs)
	n += ord.String.Marshal(doc.Content, bs[n:])
	n += metadataMUS.Marshal(doc.Metadata, bs[n:])
	n += embeddingMUS.Marshal(doc.Embedding, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (core.Document, int, error) {
	var doc core.Document
	id, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return doc, n, err
	}
	doc.ID = id

	content, n1, err := ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return doc, n, err
	}
	doc.Content = content

	metadata, n1, err := metadataMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return doc, n, err
	}
	doc.Metadata = metadata

	embedding, n1, err := embeddingMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return doc, n, err
	}
	doc.Embedding = embedding

	return doc, n, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, DocumentMUS.Size(*doc))
	DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &doc, nil
}
