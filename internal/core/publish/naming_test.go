package publish

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

func TestDefaultLabel(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "shop 2026-03-04 05:06:07", DefaultLabel("shop", now))
}

func TestDeploymentName_Unique(t *testing.T) {
	target := domain.DeploymentTarget{ServiceName: "shop", Slot: domain.SlotStaging}
	a := DeploymentName(target)
	b := DeploymentName(target)

	assert.True(t, strings.HasPrefix(a, "shop-staging-"))
	assert.Len(t, a, len("shop-staging-")+8)
	assert.NotEqual(t, a, b)
}

func TestPackageBlobName(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "shop/20260304T050607Z_app.cspkg", PackageBlobName("shop", "/tmp/build/app.cspkg", now))
	assert.Equal(t, "shop/20260304T050607Z_app.cspkg", PackageBlobName("shop", `C:\build\app.cspkg`, now))
}

func TestProductionURL(t *testing.T) {
	prod := domain.DeploymentTarget{ServiceName: "Shop", Slot: domain.SlotProduction}
	staging := domain.DeploymentTarget{ServiceName: "Shop", Slot: domain.SlotStaging}

	url, ok := ProductionURL(prod, "", "")
	assert.True(t, ok)
	assert.Equal(t, "http://shop.cloudapp.net/", url)

	url, ok = ProductionURL(prod, "http://reported.example/", "")
	assert.True(t, ok)
	assert.Equal(t, "http://reported.example/", url)

	_, ok = ProductionURL(staging, "http://reported.example/", "")
	assert.False(t, ok)
}

func TestStorageAccountName(t *testing.T) {
	assert.Equal(t, "myshop01", StorageAccountName("My-Shop-01"))
	assert.Equal(t, "ab0", StorageAccountName("a-b"))
	assert.Len(t, StorageAccountName(strings.Repeat("x", 40)), 24)
}
