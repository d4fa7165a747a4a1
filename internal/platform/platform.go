// Package platform holds the static catalog of social platforms a link can
// point at. The catalog is compiled in; it changes with releases, not data.
package platform

// Platform describes one entry in the catalog. URLPrefix is the base the
// admin UI offers when composing a link; Icon and Color are presentation
// hints for the client.
type Platform struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Color     string `json:"color"`
	URLPrefix string `json:"urlPrefix"`
}

var catalog = []Platform{
	{ID: "instagram", Name: "Instagram", Icon: "instagram-line", Color: "text-pink-600", URLPrefix: "https://instagram.com/"},
	{ID: "youtube", Name: "YouTube", Icon: "youtube-line", Color: "text-red-600", URLPrefix: "https://youtube.com/@"},
	{ID: "twitter", Name: "Twitter", Icon: "twitter-x-line", Color: "text-gray-800", URLPrefix: "https://twitter.com/"},
	{ID: "facebook", Name: "Facebook", Icon: "facebook-box-fill", Color: "text-blue-600", URLPrefix: "https://facebook.com/"},
	{ID: "tiktok", Name: "TikTok", Icon: "tiktok-line", Color: "text-pink-500", URLPrefix: "https://tiktok.com/@"},
	{ID: "linkedin", Name: "LinkedIn", Icon: "linkedin-box-line", Color: "text-blue-700", URLPrefix: "https://linkedin.com/in/"},
	{ID: "github", Name: "GitHub", Icon: "github-fill", Color: "text-gray-900", URLPrefix: "https://github.com/"},
	{ID: "spotify", Name: "Spotify", Icon: "spotify-fill", Color: "text-green-500", URLPrefix: "https://open.spotify.com/user/"},
	{ID: "twitch", Name: "Twitch", Icon: "twitch-line", Color: "text-purple-600", URLPrefix: "https://twitch.tv/"},
	{ID: "website", Name: "Website", Icon: "global-line", Color: "text-blue-500", URLPrefix: "https://"},
	{ID: "custom", Name: "Custom Link", Icon: "link", Color: "text-gray-600", URLPrefix: "https://"},
}

var byID = func() map[string]Platform {
	m := make(map[string]Platform, len(catalog))
	for _, p := range catalog {
		m[p.ID] = p
	}
	return m
}()

// All returns the catalog in display order.
func All() []Platform {
	out := make([]Platform, len(catalog))
	copy(out, catalog)
	return out
}

// Valid reports whether id names a known platform.
func Valid(id string) bool {
	_, ok := byID[id]
	return ok
}

// Get returns the platform for id.
func Get(id string) (Platform, bool) {
	p, ok := byID[id]
	return p, ok
}
