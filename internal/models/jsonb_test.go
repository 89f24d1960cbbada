package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onronder/p-958660-sub000/internal/models"
)

func TestJSONBMap_Scan(t *testing.T) {
	t.Parallel()

	var m models.JSONBMap
	require.NoError(t, m.Scan([]byte(`{"store_name":"acme","api_token":"t"}`)))
	assert.Equal(t, "acme", m["store_name"])

	require.NoError(t, m.Scan(`{}`))
	assert.NotNil(t, m)
	assert.Empty(t, m)

	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)

	assert.Error(t, m.Scan(42))
}

func TestJSONBMap_Value(t *testing.T) {
	t.Parallel()

	v, err := models.JSONBMap(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = models.JSONBMap{"a": 1}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(v.([]byte)))
}

func TestRecords_RoundTrip(t *testing.T) {
	t.Parallel()

	in := models.Records{{"id": "1"}, {"id": "2"}}
	v, err := in.Value()
	require.NoError(t, err)

	var out models.Records
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)
}

func TestSource_IsShopify(t *testing.T) {
	t.Parallel()

	assert.True(t, (&models.Source{SourceType: "Shopify"}).IsShopify())
	assert.True(t, (&models.Source{SourceType: " shopify "}).IsShopify())
	assert.False(t, (&models.Source{SourceType: "WooCommerce"}).IsShopify())
}
