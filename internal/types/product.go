package types

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"net/url"
	"strings"
)

// ContentIDPrefix namespaces document ids in the store.
const ContentIDPrefix = "product_"

// Review is a single customer review attached to a product document.
// It has no identity of its own beyond its position in the parent's list.
type Review struct {
	Author          string         `bson:"author"            json:"author"`
	Date            string         `bson:"date"              json:"date"`
	VerifiedBuyer   bool           `bson:"verified_buyer"    json:"verified_buyer"`
	Stars           int            `bson:"stars"             json:"stars"`
	CategoryRatings map[string]int `bson:"category_ratings,omitempty" json:"category_ratings,omitempty"`
	UsagePeriod     string         `bson:"usage_period"      json:"usage_period"`
	Pros            string         `bson:"pros"              json:"pros"`
	Cons            string         `bson:"cons"              json:"cons"`
	Comment         string         `bson:"comment"           json:"comment"`
}

// HasText reports whether at least one of the free-text fields is non-empty.
// Reviews that fail this check after cleaning are dropped at persistence time.
func (r *Review) HasText() bool {
	return r.Pros != "" || r.Cons != "" || r.Comment != ""
}

// ProductDocument is the raw nested record for one physical product.
// Identity is the content id derived from the canonical product URL, so
// repeated crawls of the same product upsert the same document.
type ProductDocument struct {
	ID              string            `bson:"_id"           json:"id"`
	Category        string            `bson:"category"      json:"category"`
	Name            string            `bson:"name"          json:"name"`
	Price           int               `bson:"price"         json:"price"`
	Rating          string            `bson:"rating"        json:"rating"`
	SourceURL       string            `bson:"source_url"    json:"source_url"`
	Description     string            `bson:"description"   json:"description"`
	Characteristics map[string]string `bson:"characteristics" json:"characteristics"`
	Reviews         []Review          `bson:"reviews"       json:"reviews"`
	TotalReviews    int               `bson:"total_reviews" json:"total_reviews"`

	// Revision counts how many times this document has been overwritten.
	// Maintained by the store, not by parsers.
	Revision int `bson:"revision" json:"revision"`
}

// Complete reports whether the document satisfies the required-field
// completeness predicate: every field the crawl is supposed to fill must be
// present, even if empty or zero. Characteristics and Reviews count as
// present when non-nil; scalar fields when non-empty where a parser always
// supplies a fallback token.
func (d *ProductDocument) Complete() bool {
	return d.Category != "" &&
		d.Name != "" &&
		d.Rating != "" &&
		d.SourceURL != "" &&
		d.Description != "" &&
		d.Characteristics != nil &&
		d.Reviews != nil
}

// CanonicalURL normalizes a product URL for identity purposes:
// lowercased scheme and host, query string and fragment removed, trailing
// slash stripped. Two trivially different spellings of the same product page
// canonicalize to the same string.
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""

	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	return u.String()
}

// ContentID derives the stable document id for a product URL. The same URL
// (modulo canonicalization) always yields the same id, which is the sole
// upsert key in the document store.
func ContentID(rawURL string) string {
	sum := md5.Sum([]byte(CanonicalURL(rawURL)))
	return ContentIDPrefix + hex.EncodeToString(sum[:])
}

// RelationID derives the integer product id used by the normalized relations
// from a content id. It is a pure function of the id, so the relation id is
// stable across ETL cycles regardless of document iteration order.
func RelationID(contentID string) int64 {
	raw := strings.TrimPrefix(contentID, ContentIDPrefix)
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) < 8 {
		sum := md5.Sum([]byte(contentID))
		b = sum[:]
	}
	// Clear the sign bit so ids stay positive in every columnar consumer.
	return int64(binary.BigEndian.Uint64(b[:8]) &^ (1 << 63))
}
