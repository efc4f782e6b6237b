package server

import (
	"net/http"

	"github.com/me/bakesched/pkg/model"
)

// handleListRecipes lists the loaded catalog, mostly useful for debugging a
// deployment's recipe directory.
func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var recipes []*model.Recipe
	for _, p := range s.catalog.Products() {
		recipe, err := s.catalog.RecipeForProduct(p.ID)
		if err != nil {
			continue
		}
		recipes = append(recipes, recipe)
	}
	if recipes == nil {
		recipes = []*model.Recipe{}
	}
	respondOK(w, reqID, recipes)
}
