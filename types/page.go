/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"math"
	"net/url"
	"strconv"
)

// PageRequest describes an explicit page, its size, equality criteria and ordering.
// It is used by callers that run outside of a request scope.
type PageRequest struct {
	page     int
	pageSize int
	criteria Criteria
	orders   []Order
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = DefaultPageSize
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetCriteria() Criteria {
	return p.criteria
}

func (p *PageRequest) GetOrders() []Order {
	return p.orders
}

// NewPageRequest constructs a PageRequest with criteria and order settings.
func NewPageRequest(page int, pageSize int, criteria Criteria, orders ...Order) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize, criteria: criteria, orders: orders}
}

// NewDefaultPageRequest constructs a PageRequest with no criteria or ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil)
}

// DefaultPageSize is used when neither the caller nor configuration gives a size.
const DefaultPageSize = 15

// Pagination holds one page of items along with the metadata needed to
// render links to its neighbours.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
	Path     string
	Query    url.Values
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{Page: page, PageSize: pageSize, Items: make([]*T, 0)}
}

// LastPage is at least 1, even for an empty result.
func (p *Pagination[T]) LastPage() int {
	if p.PageSize < 1 || p.Total == 0 {
		return 1
	}
	return int(math.Ceil(float64(p.Total) / float64(p.PageSize)))
}

func (p *Pagination[T]) HasMorePages() bool {
	return p.Page < p.LastPage()
}

// From and To are the 1-based positions of the first and last item on the page.
// Both are zero when the page is empty.
func (p *Pagination[T]) From() int {
	if len(p.Items) == 0 {
		return 0
	}
	return (p.Page-1)*p.PageSize + 1
}

func (p *Pagination[T]) To() int {
	if len(p.Items) == 0 {
		return 0
	}
	return p.From() + len(p.Items) - 1
}

// URL builds the link to page, keeping every other query parameter of the
// originating request.
func (p *Pagination[T]) URL(page int) string {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	for k, v := range p.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	return p.Path + "?" + q.Encode()
}

// NextURL is empty on the last page.
func (p *Pagination[T]) NextURL() string {
	if !p.HasMorePages() {
		return ""
	}
	return p.URL(p.Page + 1)
}

// PrevURL is empty on the first page.
func (p *Pagination[T]) PrevURL() string {
	if p.Page <= 1 {
		return ""
	}
	return p.URL(p.Page - 1)
}

// Window returns up to size consecutive page numbers around the current page,
// shifted so that it never leaves [1, LastPage].
func (p *Pagination[T]) Window(size int) []int {
	last := p.LastPage()
	if size < 1 {
		return []int{}
	}
	if size > last {
		size = last
	}
	start := p.Page - size/2
	if start < 1 {
		start = 1
	}
	if start+size-1 > last {
		start = last - size + 1
	}
	pages := make([]int, size)
	for i := range pages {
		pages[i] = start + i
	}
	return pages
}

// Flatten renders the page in the length-aware paginator layout.
func (p *Pagination[T]) Flatten() any {
	items := p.Items
	if items == nil {
		items = make([]*T, 0)
	}
	return map[string]any{
		"current_page":   p.Page,
		"data":           items,
		"first_page_url": p.URL(1),
		"from":           nullableInt(p.From()),
		"last_page":      p.LastPage(),
		"last_page_url":  p.URL(p.LastPage()),
		"next_page_url":  nullableString(p.NextURL()),
		"path":           p.Path,
		"per_page":       p.PageSize,
		"prev_page_url":  nullableString(p.PrevURL()),
		"to":             nullableInt(p.To()),
		"total":          p.Total,
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
