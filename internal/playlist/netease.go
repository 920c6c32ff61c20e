package playlist

import (
	"fmt"
	"net/url"
)

// NeteaseAudioCandidates lists the public outer-link mirrors for a NetEase
// song id, most reliable first, ending with a local /audio copy.
func NeteaseAudioCandidates(id string) []string {
	if id == "" {
		return nil
	}
	q := url.QueryEscape(id)
	return []string{
		fmt.Sprintf("https://music.163.com/song/media/outer/url?id=%s.mp3", q),
		fmt.Sprintf("https://link.hhtjim.com/163/%s.mp3", q),
		fmt.Sprintf("https://api.injahow.cn/meting/?type=song&id=%s&source=netease&br=128000", q),
		fmt.Sprintf("/audio/%s.mp3", q),
	}
}

func NeteaseCoverCandidate(id string) string {
	if id == "" {
		return ""
	}
	return fmt.Sprintf("https://api.injahow.cn/meting/?type=pic&id=%s&source=netease", url.QueryEscape(id))
}
