package config

import "strings"

// RedactedSecret replaces passwords and API keys in configs handed to the UI.
const RedactedSecret = "********"

// Redacted returns a copy of c with every non-empty secret masked.
func (c *Config) Redacted() *Config {
	out := *c
	if c.QBittorrent != nil {
		qb := *c.QBittorrent
		qb.Password = mask(qb.Password)
		qb.BasicPass = mask(qb.BasicPass)
		out.QBittorrent = &qb
	}
	if c.Deluge != nil {
		dl := *c.Deluge
		dl.Password = mask(dl.Password)
		out.Deluge = &dl
	}
	if c.RTorrent != nil {
		rt := *c.RTorrent
		rt.BasicPass = mask(rt.BasicPass)
		out.RTorrent = &rt
	}

	out.Services = make([]Service, len(c.Services))
	for i, svc := range c.Services {
		svc.APIKey = mask(svc.APIKey)
		out.Services[i] = svc
	}
	return &out
}

// RestoreSecrets puts back the secrets a client echoed as RedactedSecret,
// taking them from prev. Services are matched by name. A masked value with
// nothing to restore from is cleared.
func (c *Config) RestoreSecrets(prev *Config) {
	if prev == nil {
		prev = &Config{}
	}

	if c.QBittorrent != nil {
		var old QBitConfig
		if prev.QBittorrent != nil {
			old = *prev.QBittorrent
		}
		c.QBittorrent.Password = restore(c.QBittorrent.Password, old.Password)
		c.QBittorrent.BasicPass = restore(c.QBittorrent.BasicPass, old.BasicPass)
	}
	if c.Deluge != nil {
		var old DelugeConfig
		if prev.Deluge != nil {
			old = *prev.Deluge
		}
		c.Deluge.Password = restore(c.Deluge.Password, old.Password)
	}
	if c.RTorrent != nil {
		var old RTorrConfig
		if prev.RTorrent != nil {
			old = *prev.RTorrent
		}
		c.RTorrent.BasicPass = restore(c.RTorrent.BasicPass, old.BasicPass)
	}

	keys := make(map[string]string, len(prev.Services))
	for _, svc := range prev.Services {
		keys[strings.ToLower(svc.Name)] = svc.APIKey
	}
	for i := range c.Services {
		svc := &c.Services[i]
		svc.APIKey = restore(svc.APIKey, keys[strings.ToLower(svc.Name)])
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return RedactedSecret
}

func restore(value, previous string) string {
	if value == RedactedSecret {
		return previous
	}
	return value
}
