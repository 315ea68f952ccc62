package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("BASE_URL", "")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 48, cfg.Scrape.PageSize)
	assert.Equal(t, "https://store.nintendo.com.hk", cfg.Scrape.BaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("BASE_URL", "https://shop.example.com/")
	t.Setenv("MIN_DELAY", "1")
	t.Setenv("MAX_DELAY", "1500ms")
	t.Setenv("HEADLESS", "false")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "https://shop.example.com", cfg.Scrape.BaseURL)
	assert.Equal(t, time.Second, cfg.Scrape.MinDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scrape.MaxDelay)
	assert.False(t, cfg.Render.Headless)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")
	t.Setenv("RENDER_DRIVER", "selenium")
	t.Setenv("MIN_DELAY", "5s")
	t.Setenv("MAX_DELAY", "1s")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
	assert.Contains(t, err.Error(), "RENDER_DRIVER")
	assert.Contains(t, err.Error(), "delay range")
}

func TestListings(t *testing.T) {
	t.Setenv("BASE_URL", "https://shop.example.com")

	listings := Load().Listings()

	catalog := listings[ListingCatalog]
	assert.Equal(t, "https://shop.example.com/download-code?product_list_limit=48&p=3", catalog.PageURL(3))
	assert.Equal(t, 48, catalog.PageSize)
	assert.Equal(t, 100, catalog.MinRecords)

	sale := listings[ListingSale]
	assert.Equal(t, "https://shop.example.com/download-code/sale?product_list_limit=48&p=1", sale.PageURL(1))
	assert.Zero(t, sale.PageSize)
	assert.Equal(t, 1, sale.MinRecords)
}
