package server

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/KaramelBytes/askcsv/internal/dataset"
)

// Uploads keeps parsed datasets in memory, keyed by upload filename, until
// they expire.
type Uploads struct {
	cache *cache.Cache
}

// NewUploads returns a store whose entries live for ttl after their last
// upload.
func NewUploads(ttl time.Duration) *Uploads {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Uploads{cache: cache.New(ttl, ttl/2)}
}

// Put stores ds under name, replacing any earlier upload of the same name.
func (u *Uploads) Put(name string, ds *dataset.Dataset) {
	u.cache.SetDefault(name, ds)
}

// Get returns the dataset uploaded as name.
func (u *Uploads) Get(name string) (*dataset.Dataset, bool) {
	v, ok := u.cache.Get(name)
	if !ok {
		return nil, false
	}
	ds, ok := v.(*dataset.Dataset)
	return ds, ok
}

// Len reports how many uploads are live.
func (u *Uploads) Len() int { return u.cache.ItemCount() }
