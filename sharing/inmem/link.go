package inmem

import (
	"context"
	"sort"

	"github.com/bobinette/coursedocs/sharing"
)

type LinkRepository struct {
	links map[int]sharing.LinkedFile
}

func NewLinkRepository() *LinkRepository {
	return &LinkRepository{
		links: make(map[int]sharing.LinkedFile),
	}
}

func (r *LinkRepository) Get(_ context.Context, moduleID int) (sharing.LinkedFile, error) {
	return r.links[moduleID], nil
}

func (r *LinkRepository) Put(_ context.Context, link sharing.LinkedFile) error {
	r.links[link.ModuleID] = link
	return nil
}

func (r *LinkRepository) Delete(_ context.Context, moduleID int) error {
	delete(r.links, moduleID)
	return nil
}

func (r *LinkRepository) ModulesForFile(_ context.Context, fileID string) ([]int, error) {
	var ids []int
	for moduleID, link := range r.links {
		if link.FileID == fileID {
			ids = append(ids, moduleID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *LinkRepository) Files(_ context.Context) ([]string, error) {
	set := make(map[string]bool)
	for _, link := range r.links {
		set[link.FileID] = true
	}

	files := make([]string, 0, len(set))
	for f := range set {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}
