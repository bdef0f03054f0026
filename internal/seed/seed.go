// Package seed populates the feed database with demo data for development
// and testing.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"civicfeed/internal/models"
	"civicfeed/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Demo account every seeded database gets.
const (
	DemoEmail    = "demo@civicfeed.local"
	DemoPassword = "password123"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// Seed makes generated content reproducible. Zero uses the clock.
	Seed int64
}

// Seeder writes demo users, posts and engagement.
type Seeder struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Seeder{db: db, opts: opts, rng: rand.New(rand.NewSource(seed))}
}

// Result summarizes a seeding run.
type Result struct {
	Users []models.User
	Posts []models.Post
	Likes int
}

// Run cleans (optionally) and seeds everything in one transaction.
func (s *Seeder) Run() (*Result, error) {
	res := &Result{}
	ctx := context.Background()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepository(tx)
		posts := repository.NewPostRepository(tx)
		if s.opts.ShouldClean {
			if err := clearAll(tx); err != nil {
				return err
			}
		}

		demo, err := s.createUser(ctx, users, DemoEmail, "demo", DemoPassword)
		if err != nil {
			return err
		}
		res.Users = append(res.Users, *demo)
		for i := 0; i < s.opts.NumUsers; i++ {
			username := fmt.Sprintf("%s%d", gofakeit.Username(), i)
			u, err := s.createUser(ctx, users, strings.ToLower(username)+"@example.org", username, DemoPassword)
			if err != nil {
				return err
			}
			res.Users = append(res.Users, *u)
		}

		generated := make([]models.Post, 0, s.opts.NumPosts)
		for i := 0; i < s.opts.NumPosts; i++ {
			author := res.Users[s.rng.Intn(len(res.Users))]
			generated = append(generated, s.buildPost(author.ID, models.PostCategories[i%len(models.PostCategories)], i))
		}
		if len(generated) > 0 {
			if err := tx.CreateInBatches(&generated, 100).Error; err != nil {
				return fmt.Errorf("create generated posts: %w", err)
			}
		}
		res.Posts = append(res.Posts, generated...)

		// fixtures are inserted last so they sit at the top of the feed
		fixtures, err := loadFixtures(fixturesYAML)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for i, f := range fixtures {
			p := f.toModel(demo.ID)
			p.CreatedAt = now.Add(time.Duration(i) * time.Second)
			if err := posts.Create(ctx, &p); err != nil {
				return fmt.Errorf("create fixture %q: %w", p.Title, err)
			}
			res.Posts = append(res.Posts, p)
		}

		likes, err := s.seedEngagement(tx, res.Users, res.Posts)
		if err != nil {
			return err
		}
		res.Likes = likes
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Seeded %d users, %d posts, %d likes", len(res.Users), len(res.Posts), res.Likes)
	return res, nil
}

func (s *Seeder) createUser(ctx context.Context, users repository.UserRepository, email, username, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		District: fmt.Sprintf("District %d", s.rng.Intn(6)+1),
		Role:     "citizen",
	}
	if err := users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}
	return u, nil
}

// buildPost makes a generated post. Creation times step back an hour per
// index so ordering is stable.
func (s *Seeder) buildPost(userID uint, postType models.Category, index int) models.Post {
	lat := 40.70 + s.rng.Float64()*0.1
	lng := -74.05 + s.rng.Float64()*0.1
	p := models.Post{
		UserID:    userID,
		Title:     gofakeit.Sentence(5),
		Content:   gofakeit.Paragraph(1, s.rng.Intn(3)+1, 12, " "),
		PostType:  postType,
		Category:  gofakeit.RandomString([]string{"Infrastructure", "Safety", "Events", "Parks", "Transit"}),
		Location:  gofakeit.Street(),
		District:  fmt.Sprintf("District %d", s.rng.Intn(6)+1),
		Latitude:  &lat,
		Longitude: &lng,
		CreatedAt: time.Now().UTC().Add(-time.Duration(index+1) * time.Hour),
	}
	if s.rng.Intn(3) == 0 {
		p.Media = []models.Media{{
			Kind:     models.MediaImage,
			MediaURL: fmt.Sprintf("https://picsum.photos/seed/%s/800/600", gofakeit.UUID()),
		}}
	}
	return p
}

// seedEngagement gives every post a random set of likes, bookmarks and
// comments.
func (s *Seeder) seedEngagement(tx *gorm.DB, users []models.User, posts []models.Post) (int, error) {
	likes := 0
	for _, p := range posts {
		for _, u := range users {
			if s.rng.Intn(4) == 0 {
				if err := tx.Create(&models.Like{UserID: u.ID, PostID: p.ID}).Error; err != nil {
					return likes, fmt.Errorf("create like: %w", err)
				}
				likes++
			}
			if s.rng.Intn(10) == 0 {
				if err := tx.Create(&models.Bookmark{UserID: u.ID, PostID: p.ID}).Error; err != nil {
					return likes, fmt.Errorf("create bookmark: %w", err)
				}
			}
		}
		for i := s.rng.Intn(3); i > 0; i-- {
			c := models.Comment{PostID: p.ID, UserID: users[s.rng.Intn(len(users))].ID, Content: gofakeit.Sentence(8)}
			if err := tx.Create(&c).Error; err != nil {
				return likes, fmt.Errorf("create comment: %w", err)
			}
		}
	}
	return likes, nil
}

// clearAll removes all feed data, children first.
func clearAll(tx *gorm.DB) error {
	for _, m := range []any{&models.Like{}, &models.Bookmark{}, &models.Comment{}, &models.Media{}, &models.Post{}, &models.User{}} {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	return nil
}
