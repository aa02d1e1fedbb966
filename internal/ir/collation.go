package ir

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collation URIs understood by LookupCollation.
const (
	CodepointCollationURI = "http://www.w3.org/2005/xpath-functions/collation/codepoint"
	UCACollationPrefix    = "http://www.w3.org/2013/collation/UCA"
)

// ErrUnknownCollation is returned by LookupCollation for unsupported URIs.
var ErrUnknownCollation = errors.New("unsupported collation")

// Collation compares strings.
type Collation interface {
	Compare(a, b string) int
	URI() string
}

type codepointCollation struct{}

func (codepointCollation) Compare(a, b string) int { return strings.Compare(a, b) }
func (codepointCollation) URI() string             { return CodepointCollationURI }

// CodepointCollation is the default Unicode codepoint collation.
var CodepointCollation Collation = codepointCollation{}

// ucaCollation wraps an x/text collator. collate.Collator is not safe for
// concurrent use, so access is serialized; compiled queries share collations
// across goroutines.
type ucaCollation struct {
	uri string
	mu  sync.Mutex
	c   *collate.Collator
}

func (u *ucaCollation) Compare(a, b string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.c.CompareString(a, b)
}

func (u *ucaCollation) URI() string { return u.uri }

// LookupCollation resolves a collation URI. The empty string means the
// default (codepoint) collation. UCA URIs accept the "lang" and "strength"
// query parameters, e.g.
//
//	http://www.w3.org/2013/collation/UCA?lang=sv;strength=primary
func LookupCollation(uri string) (Collation, error) {
	if uri == "" || uri == CodepointCollationURI {
		return CodepointCollation, nil
	}
	if !strings.HasPrefix(uri, UCACollationPrefix) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollation, uri)
	}

	rawQuery := ""
	if idx := strings.IndexByte(uri, '?'); idx >= 0 {
		rawQuery = strings.ReplaceAll(uri[idx+1:], ";", "&")
	}
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownCollation, uri, err)
	}

	tag := language.Und
	if lang := params.Get("lang"); lang != "" {
		tag, err = language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnknownCollation, uri, err)
		}
	}

	var opts []collate.Option
	switch params.Get("strength") {
	case "", "tertiary", "quaternary", "identical":
	case "primary":
		opts = append(opts, collate.IgnoreCase, collate.IgnoreDiacritics)
	case "secondary":
		opts = append(opts, collate.IgnoreCase)
	default:
		return nil, fmt.Errorf("%w: %s: bad strength", ErrUnknownCollation, uri)
	}

	return &ucaCollation{uri: uri, c: collate.New(tag, opts...)}, nil
}
