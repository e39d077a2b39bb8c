package media

import (
	"net/url"
	"strings"
)

// SearchPrefix yt-dlp 搜索前缀，只取第一条结果
const SearchPrefix = "ytsearch1:"

var knownHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"dailymotion.com",
	"twitch.tv",
	"soundcloud.com",
	"bandcamp.com",
}

// IsURL 判断用户输入是链接还是搜索词，不区分大小写，已知站点出现在任意位置都算链接
func IsURL(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return true
	}
	for _, host := range knownHosts {
		if strings.Contains(ref, host) {
			return true
		}
	}
	return false
}

// Target 返回交给解析器的引用：链接原样返回，搜索词加上搜索前缀
func Target(ref string) string {
	ref = strings.TrimSpace(ref)
	if IsURL(ref) {
		return ref
	}
	return SearchPrefix + ref
}

// IsPlaylist 判断链接是否指向歌单
func IsPlaylist(ref string) bool {
	if !IsURL(ref) {
		return false
	}
	u, err := parseLoose(ref)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	if strings.HasPrefix(path, "/playlist") || strings.Contains(path, "/sets/") || strings.Contains(path, "/album/") {
		return true
	}
	q := u.Query()
	return q.Get("list") != "" && q.Get("v") == ""
}

// IsYouTube 链接是否属于 YouTube
func IsYouTube(ref string) bool {
	u, err := parseLoose(ref)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

func parseLoose(ref string) (*url.URL, error) {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	return url.Parse(ref)
}
