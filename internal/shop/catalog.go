// Package shop serves the item catalog backing the shop query family. The
// catalog lives in an XML file edited by operators, so parsed contents are
// cached with a short TTL rather than held for the process lifetime.
package shop

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Item is one purchasable catalog entry.
type Item struct {
	Name        string `xml:"name,attr"`
	Icon        string `xml:"icon,attr"`
	Description string `xml:"description,attr"`
	Cost        int    `xml:"cost,attr"`
	MinLevel    int    `xml:"minLvl,attr"`
}

type catalogFile struct {
	XMLName xml.Name `xml:"shop"`
	Items   []Item   `xml:"item"`
}

const (
	catalogCacheKey = "catalog"
	catalogTTL      = time.Minute
)

// Catalog loads and caches the shop file.
type Catalog struct {
	path  string
	cache *cache.Cache
}

// NewCatalog returns a catalog reading from the shop file at path.
func NewCatalog(path string) *Catalog {
	return &Catalog{
		path:  path,
		cache: cache.New(catalogTTL, 2*catalogTTL),
	}
}

type cachedCatalog struct {
	items map[string]Item
	raw   string
}

// load reads and parses the shop file, serving from cache while the TTL
// lasts so operator edits are picked up without a restart.
func (c *Catalog) load() (*cachedCatalog, error) {
	if cached, ok := c.cache.Get(catalogCacheKey); ok {
		return cached.(*cachedCatalog), nil
	}

	content, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("reading shop file %s: %w", c.path, err)
	}

	var parsed catalogFile
	if err := xml.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("parsing shop file %s: %w", c.path, err)
	}

	items := make(map[string]Item, len(parsed.Items))
	for _, item := range parsed.Items {
		items[item.Name] = item
	}

	// Clients expect the catalog as a single-line payload.
	raw := strings.NewReplacer("\r", "", "\n", "").Replace(string(content))

	entry := &cachedCatalog{items: items, raw: raw}
	c.cache.Set(catalogCacheKey, entry, cache.DefaultExpiration)
	return entry, nil
}

// ItemByName looks up a catalog entry by its name key.
func (c *Catalog) ItemByName(name string) (Item, bool, error) {
	catalog, err := c.load()
	if err != nil {
		return Item{}, false, err
	}

	item, ok := catalog.items[name]
	return item, ok, nil
}

// XML returns the catalog payload sent to clients.
func (c *Catalog) XML() (string, error) {
	catalog, err := c.load()
	if err != nil {
		return "", err
	}
	return catalog.raw, nil
}
