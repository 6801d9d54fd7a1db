package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "https://api.example.com"

func TestNormalizeImageURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"blank", "   ", ""},
		{"absolute https", "https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"absolute http", "http://cdn.example.com/a.png", "http://cdn.example.com/a.png"},
		{"protocol relative", "//res.cloudinary.com/demo/a.png", "https://res.cloudinary.com/demo/a.png"},
		{"bare cloudinary", "res.cloudinary.com/demo/a.png", "https://res.cloudinary.com/demo/a.png"},
		{"bare gcs", "storage.googleapis.com/bucket/a.png", "https://storage.googleapis.com/bucket/a.png"},
		{"bucket subdomain", "bucket.s3.amazonaws.com/a.png", "https://bucket.s3.amazonaws.com/a.png"},
		{"relative without slash", "uploads/a.png", base + "/uploads/a.png"},
		{"relative with slash", "/uploads/a.png", base + "/uploads/a.png"},
		{"relative with many slashes", "///uploads/a.png", base + "/uploads/a.png"},
		{"relative with double slash", "//uploads/a.png", base + "/uploads/a.png"},
		{"windows separators", `uploads\img\a.png`, base + "/uploads/img/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeImageURL(tt.raw, base))
		})
	}
}

func TestNormalizeImageURLTrailingSlashBase(t *testing.T) {
	assert.Equal(t, base+"/a.png", NormalizeImageURL("a.png", base+"/"))
}

func TestNormalizeImagesLeavesMissingImages(t *testing.T) {
	rel := "uploads/a.png"
	empty := ""
	in := []Product{{ID: "1"}, {ID: "2", ImageURL: &rel}, {ID: "3", ImageURL: &empty}}

	out := NormalizeImages(in, base)
	require.Len(t, out, 3)
	assert.Nil(t, out[0].ImageURL)
	assert.Equal(t, base+"/uploads/a.png", out[1].Image())
	assert.Equal(t, "", out[2].Image())
	assert.Equal(t, "uploads/a.png", *in[1].ImageURL, "input is not modified")
}

func TestAvailableSoon(t *testing.T) {
	zero, five := 0, 5
	assert.False(t, Product{}.AvailableSoon())
	assert.True(t, Product{Quantity: &zero}.AvailableSoon())
	assert.False(t, Product{Quantity: &five}.AvailableSoon())
}

func TestProductJSON(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"id":12,"name":"Oil","price":499.5,"priority":1,"image_url":null}`), &p))
	assert.Equal(t, ID("12"), p.ID)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("499.5")))
	assert.Nil(t, p.ImageURL)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":12,"name":"Oil","price":499.5,"description":"","priority":1}`, string(b))
}

func TestIDAcceptsStrings(t *testing.T) {
	var ids []ID
	require.NoError(t, json.Unmarshal([]byte(`["a1", 7, null]`), &ids))
	assert.Equal(t, []ID{"a1", "7", ""}, ids)

	b, err := json.Marshal([]ID{"a1", "7"})
	require.NoError(t, err)
	assert.Equal(t, `["a1",7]`, string(b))

	b, err = json.Marshal([]ID{"007", "+5", "-3", "0"})
	require.NoError(t, err)
	assert.Equal(t, `["007","+5",-3,0]`, string(b))

	b, err = json.Marshal(Order{ProductID: "007"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"product_id":"007"`)

	var bad ID
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}
