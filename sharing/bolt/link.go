package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/boltdb/bolt"

	"github.com/bobinette/coursedocs/sharing"
)

// LinkRepository stores module -> link as json in the links bucket and keeps
// the reverse index file -> modules in the files bucket.
type LinkRepository struct {
	driver *Driver
}

func NewLinkRepository(driver *Driver) *LinkRepository {
	return &LinkRepository{
		driver: driver,
	}
}

func (r *LinkRepository) Get(_ context.Context, moduleID int) (sharing.LinkedFile, error) {
	var link sharing.LinkedFile
	err := r.driver.store.View(func(tx *bolt.Tx) error {
		var err error
		link, err = getLink(tx.Bucket(linkBucket), moduleID)
		return err
	})
	if err != nil {
		return sharing.LinkedFile{}, err
	}

	return link, nil
}

func (r *LinkRepository) Put(_ context.Context, link sharing.LinkedFile) error {
	return r.driver.store.Update(func(tx *bolt.Tx) error {
		links := tx.Bucket(linkBucket)
		files := tx.Bucket(fileBucket)

		old, err := getLink(links, link.ModuleID)
		if err != nil {
			return err
		} else if old.FileID != "" {
			if err := unindex(files, old.FileID, link.ModuleID); err != nil {
				return err
			}
		}

		data, err := json.Marshal(link)
		if err != nil {
			return err
		}
		if err := links.Put(itob(link.ModuleID), data); err != nil {
			return err
		}
		return index(files, link.FileID, link.ModuleID)
	})
}

func (r *LinkRepository) Delete(_ context.Context, moduleID int) error {
	return r.driver.store.Update(func(tx *bolt.Tx) error {
		links := tx.Bucket(linkBucket)

		old, err := getLink(links, moduleID)
		if err != nil {
			return err
		} else if old.FileID == "" {
			return nil
		}

		if err := unindex(tx.Bucket(fileBucket), old.FileID, moduleID); err != nil {
			return err
		}
		return links.Delete(itob(moduleID))
	})
}

func (r *LinkRepository) ModulesForFile(_ context.Context, fileID string) ([]int, error) {
	var ids []int
	err := r.driver.store.View(func(tx *bolt.Tx) error {
		var err error
		ids, err = modules(tx.Bucket(fileBucket), fileID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *LinkRepository) Files(_ context.Context) ([]string, error) {
	var files []string
	err := r.driver.store.View(func(tx *bolt.Tx) error {
		return tx.Bucket(fileBucket).ForEach(func(k, _ []byte) error {
			files = append(files, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func getLink(bucket *bolt.Bucket, moduleID int) (sharing.LinkedFile, error) {
	data := bucket.Get(itob(moduleID))
	if data == nil {
		return sharing.LinkedFile{}, nil
	}

	var link sharing.LinkedFile
	if err := json.Unmarshal(data, &link); err != nil {
		return sharing.LinkedFile{}, err
	}
	return link, nil
}

func modules(bucket *bolt.Bucket, fileID string) ([]int, error) {
	data := bucket.Get([]byte(fileID))
	if data == nil {
		return nil, nil
	}

	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func index(bucket *bolt.Bucket, fileID string, moduleID int) error {
	ids, err := modules(bucket, fileID)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if id == moduleID {
			return nil
		}
	}

	ids = append(ids, moduleID)
	sort.Ints(ids)
	return putModules(bucket, fileID, ids)
}

func unindex(bucket *bolt.Bucket, fileID string, moduleID int) error {
	ids, err := modules(bucket, fileID)
	if err != nil {
		return err
	}

	kept := ids[:0]
	for _, id := range ids {
		if id != moduleID {
			kept = append(kept, id)
		}
	}

	if len(kept) == 0 {
		return bucket.Delete([]byte(fileID))
	}
	return putModules(bucket, fileID, kept)
}

func putModules(bucket *bolt.Bucket, fileID string, ids []int) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(fileID), data)
}

func itob(v int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
