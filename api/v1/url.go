package v1

import (
	"net/url"
	"strings"
)

// uriComponentReplacer turns url.QueryEscape output into what JavaScript's
// encodeURIComponent produces, which is what the API has always received.
var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}

// URL returns the authenticated endpoint URL for action. Entries of the
// reserved urls and instances keys become repeated url= and instance_id=
// parameters; every other key is sent once per Set or Add, in order.
func (c *Client) URL(action string, args *Args) string {
	key, base := c.credentials()
	return buildURL(base, key, action, args)
}

func buildURL(base string, key string, action string, args *Args) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("/")
	b.WriteString(action)
	b.WriteString("?key=")
	b.WriteString(encodeURIComponent(key))

	for _, u := range args.Values(urlsKey) {
		b.WriteString("&url=")
		b.WriteString(encodeURIComponent(u))
	}
	for _, instance := range args.Values(instancesKey) {
		b.WriteString("&instance_id=")
		b.WriteString(encodeURIComponent(instance))
	}

	if args != nil {
		for _, p := range args.params {
			if p.key == urlsKey || p.key == instancesKey {
				continue
			}
			b.WriteString("&")
			b.WriteString(encodeURIComponent(p.key))
			b.WriteString("=")
			b.WriteString(encodeURIComponent(strings.Join(p.values, ",")))
		}
	}

	return b.String()
}

func (c *Client) buildURL(action string, args *Args) string {
	key, base := c.credentials()
	u := buildURL(base, key, action, args)
	if c.Debug() {
		c.logger.Info("request", "url", strings.Replace(u, "key="+encodeURIComponent(key), "key=REDACTED", 1))
	}
	return u
}
