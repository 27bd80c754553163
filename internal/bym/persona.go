package bym

import (
	"fmt"
	"strings"
	"time"
)

// Persona selects the system prompt template for one invocation.
type Persona uint8

const (
	// PersonaUnknown falls back to a minimal conversational prompt.
	PersonaUnknown Persona = iota
	PersonaDefault
	PersonaImageDescription
)

func (p Persona) String() string {
	switch p {
	case PersonaDefault:
		return "default"
	case PersonaImageDescription:
		return "image_description"
	default:
		return "unknown"
	}
}

// SelectPersona picks the image-description persona for unaddressed messages
// that carry only an image, and the default persona otherwise.
func SelectPersona(autoImageDescription bool, msg *Message) Persona {
	if autoImageDescription && strings.TrimSpace(msg.Text) == "" && len(msg.Images) > 0 && !msg.AtMe {
		return PersonaImageDescription
	}
	return PersonaDefault
}

const (
	namingDirectivePrefix = "[表情包命名"
	namingDirectiveSuffix = "]"
)

// NamingDirective formats the line the image-description persona emits.
func NamingDirective(name string) string {
	return namingDirectivePrefix + ":" + name + namingDirectiveSuffix
}

// ParseNamingDirective extracts the sticker name from a segment of the form
// "[表情包命名:name]". Full-width colons are accepted.
func ParseNamingDirective(seg string) (string, bool) {
	seg = strings.TrimSpace(seg)
	rest, ok := strings.CutPrefix(seg, namingDirectivePrefix)
	if !ok {
		return "", false
	}
	rest, ok = strings.CutSuffix(rest, namingDirectiveSuffix)
	if !ok {
		return "", false
	}
	if r, ok := strings.CutPrefix(rest, ":"); ok {
		rest = r
	} else if r, ok := strings.CutPrefix(rest, "："); ok {
		rest = r
	} else {
		return "", false
	}
	name := strings.TrimSpace(rest)
	if name == "" {
		return "", false
	}
	return name, true
}

// personaInput carries everything a persona template needs.
type personaInput struct {
	Label         string
	GroupID       int64
	SpeakerName   string
	SpeakerID     int64
	SpecialNotice string
	Preset        string
	History       string
	Now           time.Time
}

var weekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

func currentTimeBlock(now time.Time) string {
	return fmt.Sprintf(CurrentTimeFormat, now.Format("2006年01月02日"), now.Format("15:04:05"), weekdays[now.Weekday()])
}

// render produces the persona's system prompt.
func (p Persona) render(in personaInput) string {
	now := currentTimeBlock(in.Now)
	switch p {
	case PersonaDefault:
		attention := ""
		if in.SpecialNotice != "" {
			attention = SpecialUserAttention
		}
		return fmt.Sprintf(DefaultPersonaPrompt,
			in.Label, in.GroupID, in.SpeakerName, in.SpeakerID, in.SpecialNotice,
			attention, in.Preset, in.History, in.Label, now)
	case PersonaImageDescription:
		return fmt.Sprintf(ImageDescriptionPersonaPrompt, in.Label, NamingDirective("名称"), now)
	default:
		return fmt.Sprintf(FallbackPersonaPrompt, in.Label, now)
	}
}
