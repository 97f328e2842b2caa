package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/alphabot-ai/inkwell/internal/client"
)

var writers = []struct {
	username  string
	firstName string
	lastName  string
}{
	{"ada", "Ada", "Lovelace"},
	{"grace", "Grace", "Hopper"},
	{"linus", "Linus", "Torvalds"},
	{"barbara", "Barbara", "Liskov"},
	{"ken", "Ken", "Thompson"},
}

var categories = []struct {
	name        string
	description string
}{
	{"Engineering", "Building and running software"},
	{"Languages", "Programming languages and their quirks"},
	{"Career", "Working in tech"},
}

var tagNames = []string{"go", "databases", "testing", "performance", "opinion", "tutorial"}

var blogs = []struct {
	title    string
	content  string
	category int
	tags     []int
	featured bool
	draft    bool
}{
	{"Why we moved our service to Go", "Static binaries, fast builds and a standard library that covers most of HTTP. Here is what the migration looked like and what we would do differently.", 0, []int{0, 4}, true, false},
	{"Indexing strategies for SQLite", "SQLite is fast when you let it be. Covering indexes, partial indexes and the query planner explained with real examples from a small blogging backend.", 0, []int{1, 3, 5}, false, false},
	{"Table-driven tests in practice", "Table-driven tests keep cases readable and make it trivial to add regressions. A walk through a real test file.", 1, []int{0, 2, 5}, true, false},
	{"The case for boring technology", "Every new dependency costs attention. Pick tools you understand deeply.", 2, []int{4}, false, false},
	{"Profiling a hot loop", "pprof, flame graphs and the one allocation that cost us 40% of our CPU budget.", 0, []int{0, 3}, false, false},
	{"Notes for a future talk", "Unfinished outline. Not ready to publish yet.", 2, nil, false, true},
}

var comments = []string{
	"Great write-up, thanks for sharing.",
	"We hit the same problem last year. Did you try batching the writes?",
	"Could you share the benchmark setup?",
	"I disagree with the conclusion but the analysis is solid.",
	"Bookmarked. This is going straight into our onboarding docs.",
	"What about Windows builds?",
	"Nice. A follow-up on deployment would be welcome.",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Inkwell server URL")
	password := flag.String("password", "seed-password-123", "Password for seeded accounts")
	flag.Parse()

	log.Printf("Seeding %s...\n", *baseURL)

	var clients []*client.Client
	var userIDs []int64
	for _, w := range writers {
		c := client.New(*baseURL)
		_, err := c.Register(client.RegisterRequest{
			Username:  w.username,
			Email:     w.username + "@example.com",
			Password:  *password,
			FirstName: w.firstName,
			LastName:  w.lastName,
		})
		if err != nil && !errors.Is(err, client.ErrAlreadyRegistered) {
			log.Fatalf("register %s: %v", w.username, err)
		}
		if err := c.Login(w.username, *password); err != nil {
			log.Fatalf("login %s: %v", w.username, err)
		}
		me, err := c.Me()
		if err != nil {
			log.Fatalf("profile %s: %v", w.username, err)
		}
		log.Printf("✓ Registered user: %s", w.username)
		clients = append(clients, c)
		userIDs = append(userIDs, me.ID)
	}

	var categoryIDs []int64
	for _, cat := range categories {
		created, err := clients[0].CreateCategory(cat.name, cat.description)
		if err != nil {
			log.Fatalf("create category %s: %v", cat.name, err)
		}
		categoryIDs = append(categoryIDs, created.ID)
	}
	var tagIDs []int64
	for _, name := range tagNames {
		created, err := clients[0].CreateTag(name)
		if err != nil {
			log.Fatalf("create tag %s: %v", name, err)
		}
		tagIDs = append(tagIDs, created.ID)
	}
	log.Printf("✓ Created %d categories, %d tags", len(categoryIDs), len(tagIDs))

	var slugs []string
	for i, b := range blogs {
		author := clients[i%len(clients)]
		ids := make([]int64, 0, len(b.tags))
		for _, t := range b.tags {
			ids = append(ids, tagIDs[t])
		}
		created, err := author.CreateBlog(client.BlogRequest{
			Title:       client.String(b.title),
			Content:     client.String(b.content),
			CategoryID:  client.Int64(categoryIDs[b.category]),
			TagIDs:      client.IDs(ids...),
			IsFeatured:  client.Bool(b.featured),
			IsPublished: client.Bool(!b.draft),
		})
		if err != nil {
			log.Fatalf("create blog %q: %v", b.title, err)
		}
		if !b.draft {
			slugs = append(slugs, created.Slug)
		}
	}
	log.Printf("✓ Created %d blogs", len(blogs))

	commentCount := 0
	for _, slug := range slugs {
		n := rand.Intn(4) + 1
		var parent *int64
		for i := 0; i < n; i++ {
			c := clients[rand.Intn(len(clients))]
			created, err := c.CreateComment(slug, parent, comments[rand.Intn(len(comments))])
			if err != nil {
				log.Printf("comment on %s: %v", slug, err)
				continue
			}
			commentCount++
			// Roughly half the comments start a reply chain.
			if rand.Float32() < 0.5 {
				parent = &created.ID
			} else {
				parent = nil
			}
		}
		for i := 0; i < rand.Intn(10); i++ {
			_, _ = clients[0].GetBlog(slug)
		}
	}
	log.Printf("✓ Added %d comments", commentCount)

	follows := 0
	for i, c := range clients {
		for j, id := range userIDs {
			if i == j || rand.Float32() < 0.5 {
				continue
			}
			if status, err := c.ToggleFollow(id); err == nil && status == "followed" {
				follows++
			}
		}
	}
	log.Printf("✓ Added %d follows", follows)

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Users:    %d\n", len(writers))
	fmt.Printf("Blogs:    %d\n", len(blogs))
	fmt.Printf("Comments: %d\n", commentCount)
	fmt.Println("\nBrowse at:", *baseURL+"/api/blogs/")
}
