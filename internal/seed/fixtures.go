package seed

import (
	_ "embed"
	"fmt"

	"civicfeed/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yml
var fixturesYAML []byte

type fixtureMedia struct {
	Kind      models.MediaKind `yaml:"kind"`
	URL       string           `yaml:"url"`
	ObjectKey string           `yaml:"object_key"`
}

type fixturePost struct {
	Title     string          `yaml:"title"`
	Content   string          `yaml:"content"`
	PostType  models.Category `yaml:"post_type"`
	Category  string          `yaml:"category"`
	Location  string          `yaml:"location"`
	District  string          `yaml:"district"`
	Latitude  *float64        `yaml:"latitude"`
	Longitude *float64        `yaml:"longitude"`
	Media     []fixtureMedia  `yaml:"media"`
}

type fixtureFile struct {
	Posts []fixturePost `yaml:"posts"`
}

// loadFixtures parses a fixture document. Every post must carry a valid
// post type.
func loadFixtures(raw []byte) ([]fixturePost, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, p := range f.Posts {
		if !p.PostType.Valid() {
			return nil, fmt.Errorf("fixture %d (%q): invalid post_type %q", i, p.Title, p.PostType)
		}
	}
	return f.Posts, nil
}

func (p fixturePost) toModel(userID uint) models.Post {
	post := models.Post{
		UserID:    userID,
		Title:     p.Title,
		Content:   p.Content,
		PostType:  p.PostType,
		Category:  p.Category,
		Location:  p.Location,
		District:  p.District,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
	}
	for i, m := range p.Media {
		post.Media = append(post.Media, models.Media{
			Kind:      m.Kind,
			MediaURL:  m.URL,
			ObjectKey: m.ObjectKey,
			Position:  i,
		})
	}
	return post
}
