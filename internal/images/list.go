package images

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// 画廊接受的文件扩展名。
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// Pagination 描述分页信息，字段名与前端消费的 JSON 保持一致。
type Pagination struct {
	CurrentPage   int `json:"currentPage"`
	TotalPages    int `json:"totalPages"`
	ImagesPerPage int `json:"imagesPerPage"`
	TotalImages   int `json:"totalImages"`
}

// Listing 是 /list-images 的响应体。
type Listing struct {
	Images     []string   `json:"images"`
	Pagination Pagination `json:"pagination"`
}

// Lister 枚举 dump 目录并分页返回文件名。
type Lister struct {
	dir     string
	perPage int
}

// NewLister 构造 Lister；dir 为画廊源目录的绝对或相对路径。
func NewLister(dir string, perPage int) (*Lister, error) {
	if dir == "" {
		return nil, errors.New("image dir required")
	}
	if perPage <= 0 {
		return nil, errors.New("images per page must be positive")
	}
	return &Lister{dir: dir, perPage: perPage}, nil
}

// List 返回第 page 页的文件名与分页信息。页码越界时收敛到合法区间；
// 目录为空时返回 currentPage=1、totalPages=0 与空列表。
func (l *Lister) List(page int) (Listing, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return Listing{}, err
	}

	images := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := imageExtensions[ext]; ok {
			images = append(images, entry.Name())
		}
	}
	// readdir 顺序不稳定，排序让分页结果可复现。
	sort.Strings(images)

	total := len(images)
	totalPages := (total + l.perPage - 1) / l.perPage

	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	offset := (page - 1) * l.perPage
	end := offset + l.perPage
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}

	return Listing{
		Images: images[offset:end],
		Pagination: Pagination{
			CurrentPage:   page,
			TotalPages:    totalPages,
			ImagesPerPage: l.perPage,
			TotalImages:   total,
		},
	}, nil
}
