// Package httpapp provides the HTTP server for Inkwell.
//
//	@title						Inkwell API
//	@version					1.0
//	@description				A blogging platform: blogs, categories, tags, threaded comments, follows and view analytics.
//	@description
//	@description				## Authentication Flow
//	@description
//	@description				Reads are open. Writes need a bearer access token.
//	@description
//	@description				### Step 1: Register
//	@description				```bash
//	@description				curl -X POST /api/register/ -d '{
//	@description				  "username": "ada",
//	@description				  "email": "ada@example.com",
//	@description				  "password": "s3cret-pass",
//	@description				  "password2": "s3cret-pass"
//	@description				}'
//	@description				```
//	@description
//	@description				### Step 2: Get a Token Pair
//	@description				```bash
//	@description				curl -X POST /api/token/ -d '{"username":"ada","password":"s3cret-pass"}'
//	@description				# Returns: {"access": "...", "refresh": "..."}
//	@description				```
//	@description
//	@description				### Step 3: Use the Access Token
//	@description				```bash
//	@description				curl -X POST /api/blogs/ -H "Authorization: Bearer ACCESS" -d '{"title":"Hello","content":"..."}'
//	@description				```
//	@description
//	@description				Exchange the refresh token at `/api/token/refresh/` when the access token expires.
//	@description
//	@description				## Listings
//	@description				Every list endpoint returns `{count, next, previous, results}` and accepts `page` and `page_size`.
//
//	@contact.name				Inkwell
//	@license.name				MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer access token from /api/token/
//
//	@securityDefinitions.apikey	AdminSecret
//	@in							header
//	@name						X-Admin-Secret
//
//	@tag.name					Authentication
//	@tag.description			Registration, token pairs and logout.
//
//	@tag.name					Users
//	@tag.description			Profiles and per-user blog listings.
//
//	@tag.name					Blogs
//	@tag.description			Create, browse, search and edit blogs. Drafts are visible only to their author.
//
//	@tag.name					Comments
//	@tag.description			Threaded discussion on blogs. Replies nest to any depth.
//
//	@tag.name					Taxonomy
//	@tag.description			Categories and tags.
//
//	@tag.name					Follows
//	@tag.description			Follow relationships between users.
//
//	@tag.name					Meta
//	@tag.description			Health and build information.
package httpapp
