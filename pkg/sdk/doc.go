// Package photodex provides a Go client for the photodex HTTP API.
//
// photodex stores photographs, embeds them asynchronously and finds them by
// English text query combined with tag, location and date filters.
//
//	client, _ := photodex.New("http://localhost:8080")
//	img, _ := client.Upload(ctx, "beach.jpg", f, photodex.UploadOptions{Tags: []string{"beach"}})
//	hits, _ := client.Search(ctx, photodex.SearchParams{Query: "sunset over the sea"})
//	similar, _ := client.Similar(ctx, img.ID, 10)
//
// Upload returns ErrDuplicate when the same photo was already stored and
// ErrValidation when the server rejects the input. Use errors.Is to check.
package photodex
