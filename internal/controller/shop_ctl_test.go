package controller

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"elfbaby/internal/repository"
	"elfbaby/internal/service"
)

func setupShopCtlRouter(db *gorm.DB) *gin.Engine {
	shopCtl := NewShopController(service.NewShopService(repository.NewShopRepository(db), nil, "", nil))
	categoryCtl := NewCategoryController(service.NewCategoryService(repository.NewCategoryRepository(db), nil))

	r := gin.New()
	api := r.Group("/api")
	api.GET("/shops", shopCtl.GetShopList)
	api.GET("/categories", categoryCtl.GetCategories)
	return r
}

func TestShopController_GetShopList(t *testing.T) {
	db := setupCtlTestDB(t)
	seedCtlData(t, db)
	r := setupShopCtlRouter(db)

	tests := []struct {
		name       string
		query      string
		wantCode   int
		wantTitles []string
	}{
		{"只返回活跃商家", "", http.StatusOK, []string{"Happy Toys"}},
		{"关键词", "?keyword=happy", http.StatusOK, []string{"Happy Toys"}},
		{"无匹配", "?keyword=zzz", http.StatusOK, []string{}},
		{"非法分页参数", "?page_size=abc", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doGet(t, r, "/api/shops"+tt.query)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var data struct {
				Total int64 `json:"total"`
				List  []struct {
					Title   string   `json:"title"`
					Markets []string `json:"markets"`
				} `json:"list"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &data))
			titles := make([]string, 0, len(data.List))
			for _, s := range data.List {
				titles = append(titles, s.Title)
				assert.Equal(t, []string{"europe", "america"}, s.Markets)
			}
			assert.Equal(t, tt.wantTitles, titles)
			assert.EqualValues(t, len(tt.wantTitles), data.Total)
		})
	}
}

func TestCategoryController_GetCategories(t *testing.T) {
	db := setupCtlTestDB(t)
	svc := service.NewCategoryService(repository.NewCategoryRepository(db), nil)
	_, failed := svc.CreateMany(t.Context(), []string{"Toys > Rattles", "Nursery"})
	require.Zero(t, failed)
	r := setupShopCtlRouter(db)

	w, env := doGet(t, r, "/api/categories")
	assert.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Total int64 `json:"total"`
		List  []struct {
			Path     string  `json:"path"`
			ParentID *string `json:"parent_id"`
		} `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.EqualValues(t, 3, data.Total)

	paths := make([]string, 0, len(data.List))
	for _, c := range data.List {
		paths = append(paths, c.Path)
	}
	assert.ElementsMatch(t, []string{"Nursery", "Toys", "Toys > Rattles"}, paths)
}
