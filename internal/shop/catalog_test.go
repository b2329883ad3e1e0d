package shop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testShopFile = "<shop>\r\n" +
	`  <item name="pistol" icon="pistol.png" description="Sidearm" cost="100" minLvl="0"/>` + "\r\n" +
	`  <item name="rifle" icon="rifle.png" description="Long gun" cost="500" minLvl="3"/>` + "\r\n" +
	"</shop>\r\n"

func writeShopFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCatalog_ItemByName(t *testing.T) {
	c := NewCatalog(writeShopFile(t, testShopFile))

	item, ok, err := c.ItemByName("rifle")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 500, item.Cost)
	require.Equal(t, 3, item.MinLevel)

	_, ok, err = c.ItemByName("bazooka")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCatalog_XMLIsSingleLine(t *testing.T) {
	c := NewCatalog(writeShopFile(t, testShopFile))

	raw, err := c.XML()
	require.NoError(t, err)
	require.NotContains(t, raw, "\n")
	require.NotContains(t, raw, "\r")
	require.Contains(t, raw, `name="pistol"`)
}

func TestCatalog_MissingFile(t *testing.T) {
	c := NewCatalog(filepath.Join(t.TempDir(), "absent.xml"))

	_, err := c.XML()
	require.Error(t, err)
}

func TestCatalog_CachesParsedFile(t *testing.T) {
	path := writeShopFile(t, testShopFile)
	c := NewCatalog(path)

	_, ok, err := c.ItemByName("pistol")
	require.NoError(t, err)
	require.True(t, ok)

	// Within the TTL, removing the backing file does not invalidate lookups.
	require.NoError(t, os.Remove(path))

	_, ok, err = c.ItemByName("pistol")
	require.NoError(t, err)
	require.True(t, ok)
}
