package harvest

import (
	"linkedin-harvester/internal/browser"
)

// Site holds every locator the crawl needs, so a markup change is a config
// change.
type Site struct {
	BaseURL string `yaml:"base_url"`
	// SearchPage, when set, is loaded before every search.
	SearchPage string          `yaml:"search_page,omitempty"`
	Login      LoginLocators   `yaml:"login"`
	Search     SearchLocators  `yaml:"search"`
	Profile    ProfileLocators `yaml:"profile"`
}

type LoginLocators struct {
	Username browser.Locator `yaml:"username"`
	Password browser.Locator `yaml:"password"`
	Submit   browser.Locator `yaml:"submit"`
}

type SearchLocators struct {
	Input   browser.Locator `yaml:"input"`
	Button  browser.Locator `yaml:"button"`
	Results browser.Locator `yaml:"results"`
	// ProfileLink is looked up inside Results.
	ProfileLink browser.Locator `yaml:"profile_link"`
}

type ProfileLocators struct {
	Overview browser.Locator `yaml:"overview"`
}

const LinkedInURL = "https://www.linkedin.com"

func DefaultSite() Site {
	return Site{
		BaseURL: LinkedInURL,
		Login: LoginLocators{
			Username: browser.ByID("login-email"),
			Password: browser.ByID("login-password"),
			Submit:   browser.ByXPath(`//form[@class="login-form"]/input[@name="submit"]`),
		},
		Search: SearchLocators{
			Input:       browser.ByID("main-search-box"),
			Button:      browser.ByXPath(`//form[@id="global-search"]//button[@class="search-button"]`),
			Results:     browser.ByID("results-container"),
			ProfileLink: browser.ByClass("title main-headline"),
		},
		Profile: ProfileLocators{
			Overview: browser.ByID("top-card"),
		},
	}
}
