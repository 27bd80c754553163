package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/edgard/bymbot/internal/llm"
)

const defaultWeatherBaseURL = "https://wttr.in"

// WeatherTool reports current conditions and a short forecast from wttr.in.
type WeatherTool struct {
	client  *http.Client
	baseURL string
}

func (t *WeatherTool) Name() string { return "weather" }

func (t *WeatherTool) Description() string {
	return "Useful when you want to know the weather(天气) of a city"
}

func (t *WeatherTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"city": llm.String("the city name, e.g. 北京"),
	}, "city")
}

func (t *WeatherTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	city := argString(args, "city")
	if city == "" {
		return "", errors.New("city is required")
	}

	base := t.baseURL
	if base == "" {
		base = defaultWeatherBaseURL
	}
	endpoint := strings.TrimRight(base, "/") + "/" + url.PathEscape(city) + "?format=j1&lang=zh"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather service returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read weather response: %w", err)
	}
	return formatWeather(city, body)
}

func formatWeather(city string, body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.New("weather service returned invalid json")
	}
	cur := gjson.GetBytes(body, "current_condition.0")
	if !cur.Exists() {
		return "", fmt.Errorf("no weather data for %s", city)
	}

	desc := cur.Get("lang_zh.0.value").String()
	if desc == "" {
		desc = cur.Get("weatherDesc.0.value").String()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s 当前天气：%s，气温 %s°C，体感 %s°C，湿度 %s%%，风速 %s km/h",
		city, desc,
		cur.Get("temp_C").String(), cur.Get("FeelsLikeC").String(),
		cur.Get("humidity").String(), cur.Get("windspeedKmph").String())

	gjson.GetBytes(body, "weather").ForEach(func(_, day gjson.Result) bool {
		fmt.Fprintf(&sb, "\n%s：%s°C ~ %s°C", day.Get("date").String(), day.Get("mintempC").String(), day.Get("maxtempC").String())
		return true
	})
	return sb.String(), nil
}
