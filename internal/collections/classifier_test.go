package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultMapping() map[string]string {
	return map[string]string{
		"| evergreen":         "Evergreen",
		"| absolute favorite": "Absolute Favorite",
		"| favorite":          "Favorites",
		"| good":              "Great",
	}
}

func TestClassify(t *testing.T) {
	classifier := NewClassifier(defaultMapping(), nil, []string{"Wishlist"})

	t.Run("known rating collection", func(t *testing.T) {
		result := classifier.Classify("| Evergreen")

		assert.Equal(t, CategoryRating, result.Category)
		assert.Equal(t, "Evergreen", result.NormalizedValue)
	})

	t.Run("lookup ignores case and surrounding whitespace", func(t *testing.T) {
		result := classifier.Classify("  | ABSOLUTE FAVORITE ")

		assert.Equal(t, CategoryRating, result.Category)
		assert.Equal(t, "Absolute Favorite", result.NormalizedValue)
	})

	t.Run("unknown name defaults to topical", func(t *testing.T) {
		result := classifier.Classify("Science Fiction")

		assert.Equal(t, CategoryTopical, result.Category)
		assert.Equal(t, "Science Fiction", result.NormalizedValue)
	})

	t.Run("topical prefix noise is stripped", func(t *testing.T) {
		result := classifier.Classify("| Space Opera")

		assert.Equal(t, CategoryTopical, result.Category)
		assert.Equal(t, "Space Opera", result.NormalizedValue)
	})

	t.Run("ignored names are skipped", func(t *testing.T) {
		result := classifier.Classify("wishlist")

		assert.Equal(t, CategoryIgnored, result.Category)
	})
}

func TestClassifyAll(t *testing.T) {
	t.Run("single rating plus topical tags", func(t *testing.T) {
		classifier := NewClassifier(defaultMapping(), nil, nil)

		grouped := classifier.ClassifyAll([]string{"| Good", "Zombies", "> History"})

		assert.Equal(t, []string{"Great"}, grouped.Ratings)
		assert.Equal(t, []string{"History", "Zombies"}, grouped.Topical)
		assert.False(t, grouped.AmbiguousRating)
	})

	t.Run("duplicate rating labels collapse", func(t *testing.T) {
		classifier := NewClassifier(defaultMapping(), nil, nil)

		grouped := classifier.ClassifyAll([]string{"| Favorite", "| FAVORITE"})

		assert.Equal(t, []string{"Favorites"}, grouped.Ratings)
	})

	t.Run("multiple ratings without precedence are ambiguous", func(t *testing.T) {
		classifier := NewClassifier(defaultMapping(), nil, nil)

		grouped := classifier.ClassifyAll([]string{"| Good", "| Favorite"})

		assert.True(t, grouped.AmbiguousRating)
		assert.Empty(t, grouped.Ratings)
	})

	t.Run("configured precedence orders multiple ratings", func(t *testing.T) {
		precedence := []string{"Evergreen", "Absolute Favorite", "Favorites", "Great"}
		classifier := NewClassifier(defaultMapping(), precedence, nil)

		grouped := classifier.ClassifyAll([]string{"| Good", "| Evergreen"})

		assert.Equal(t, []string{"Evergreen", "Great"}, grouped.Ratings)
		assert.False(t, grouped.AmbiguousRating)
	})

	t.Run("precedence missing a label falls back to ambiguous", func(t *testing.T) {
		classifier := NewClassifier(defaultMapping(), []string{"Evergreen"}, nil)

		grouped := classifier.ClassifyAll([]string{"| Good", "| Evergreen"})

		assert.True(t, grouped.AmbiguousRating)
		assert.Empty(t, grouped.Ratings)
	})

	t.Run("empty collection set", func(t *testing.T) {
		classifier := NewClassifier(defaultMapping(), nil, nil)

		grouped := classifier.ClassifyAll(nil)

		assert.Empty(t, grouped.Ratings)
		assert.Empty(t, grouped.Topical)
		assert.False(t, grouped.AmbiguousRating)
	})
}

func TestCleanTopicalName(t *testing.T) {
	assert.Equal(t, "Space Opera", CleanTopicalName("| Space Opera"))
	assert.Equal(t, "History", CleanTopicalName("> History"))
	assert.Equal(t, "History", CleanTopicalName(">History"))
	assert.Equal(t, "Plain", CleanTopicalName("Plain"))
}
