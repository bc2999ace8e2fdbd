// ABOUTME: Canned weather tools, handy for exercising tool invocation without a client.
// ABOUTME: Registers get_weather and get_alien_weather.

package tools

import (
	"context"
	"fmt"
)

// RegisterWeather registers the canned weather tools.
func RegisterWeather(reg *Registry) {
	reg.Register(&Tool{
		Name:        "get_weather",
		Description: "Get the current weather for a city.",
		Run: func(_ context.Context, args map[string]any) (map[string]any, error) {
			city, _ := args["city"].(string)
			if city == "" {
				return nil, fmt.Errorf("missing city param")
			}
			return map[string]any{
				"report": fmt.Sprintf("%s: overcast turning cloudy, 22°C", city),
			}, nil
		},
	})

	reg.Register(&Tool{
		Name:        "get_alien_weather",
		Description: "Get the current weather on an alien planet.",
		Run: func(_ context.Context, args map[string]any) (map[string]any, error) {
			planet, _ := args["planet"].(string)
			if planet == "" {
				return nil, fmt.Errorf("missing planet param")
			}
			return map[string]any{
				"report": fmt.Sprintf("toxic storms are raging across %s; travel is not advised", planet),
			}, nil
		},
	})
}
