package nsapi

import (
	"fmt"
	"strings"
)

// Identity is what the client tells the remote service about itself. The
// service requires every request to name the nation running the tool; a
// request without it is never sent.
type Identity struct {
	Product   string
	Version   string
	Developer string
	User      string
}

// Validate reports ErrIdentificationMissing when no user nation is set.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.User) == "" {
		return ErrIdentificationMissing
	}
	return nil
}

// UserAgent renders the identification header value.
func (i Identity) UserAgent() string {
	product := i.Product
	if product == "" {
		product = "Rosterwatch"
	}
	version := i.Version
	if version == "" {
		version = "dev"
	}
	ua := fmt.Sprintf("%s/%s (API component)", product, version)
	if i.Developer != "" {
		ua += "; developed by nation=" + i.Developer
	}
	return ua + "; in use by nation=" + strings.TrimSpace(i.User)
}
