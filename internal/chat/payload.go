// Package chat implements the request-handling pipeline behind the
// dealer portal chat: instant responses, caching stages, article
// resolution, knowledge-base relevance selection and queued LLM
// completion.
package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload type discriminators used on the wire. Message content
// carrying one of these is a structured payload; anything else is
// plain markdown, so consumers probe the JSON before rendering.
const (
	PayloadProductInfo        = "product_info"
	PayloadDownloadLink       = "download_link"
	PayloadMultiDownloadLinks = "multi_download_links"
)

// ProductCard is the product_info payload body.
type ProductCard struct {
	Name        string            `json:"name"`
	VendorCode  string            `json:"vendorCode"`
	Description string            `json:"description,omitempty"`
	Picture     string            `json:"picture,omitempty"`
	Price       string            `json:"price"`
	Stock       string            `json:"stock,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

// DownloadLink is a single downloadable resource.
type DownloadLink struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Payload is the structured-content union carried inside message
// content. Exactly one of Product, Link or Links is set, matching Type.
type Payload struct {
	Type    string
	Product *ProductCard
	Link    *DownloadLink
	Links   []DownloadLink
}

// NewProductInfoPayload wraps a product card.
func NewProductInfoPayload(card ProductCard) Payload {
	return Payload{Type: PayloadProductInfo, Product: &card}
}

// NewDownloadPayload wraps a single download link.
func NewDownloadPayload(link DownloadLink) Payload {
	return Payload{Type: PayloadDownloadLink, Link: &link}
}

// NewMultiDownloadPayload wraps several download links.
func NewMultiDownloadPayload(links []DownloadLink) Payload {
	return Payload{Type: PayloadMultiDownloadLinks, Links: links}
}

type wirePayload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode serializes the payload for the content field.
func (p Payload) Encode() (string, error) {
	var data any
	switch p.Type {
	case PayloadProductInfo:
		data = p.Product
	case PayloadDownloadLink:
		data = p.Link
	case PayloadMultiDownloadLinks:
		data = map[string]any{"links": p.Links}
	default:
		return "", fmt.Errorf("unknown payload type %q", p.Type)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode payload data: %w", err)
	}
	out, err := json.Marshal(wirePayload{Type: p.Type, Data: raw})
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(out), nil
}

// DecodePayload probes content for a structured payload. Plain
// markdown, malformed JSON and unknown types all return ok=false.
func DecodePayload(content string) (Payload, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return Payload{}, false
	}

	var wire wirePayload
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return Payload{}, false
	}

	switch wire.Type {
	case PayloadProductInfo:
		var card ProductCard
		if err := json.Unmarshal(wire.Data, &card); err != nil {
			return Payload{}, false
		}
		return Payload{Type: wire.Type, Product: &card}, true
	case PayloadDownloadLink:
		var link DownloadLink
		if err := json.Unmarshal(wire.Data, &link); err != nil {
			return Payload{}, false
		}
		return Payload{Type: wire.Type, Link: &link}, true
	case PayloadMultiDownloadLinks:
		var body struct {
			Links []DownloadLink `json:"links"`
		}
		if err := json.Unmarshal(wire.Data, &body); err != nil {
			return Payload{}, false
		}
		return Payload{Type: wire.Type, Links: body.Links}, true
	default:
		return Payload{}, false
	}
}

// Attachment accompanies a response: product pictures, files.
type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}
