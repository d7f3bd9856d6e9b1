package console

import (
	"fmt"
	"strings"

	"github.com/rustport/zorp/internal/domain"
)

// Command builders for the zone plugin's console vocabulary. Kept
// separate from the transport so they can be asserted on in tests.

func permissionsCommand(zoneName string, perms Permissions) string {
	return fmt.Sprintf("zones.editcustomzone %q allowbuildingdamage %d allowpvpdamage %d",
		zoneName, flag(perms.AllowBuildingDamage), flag(perms.AllowPVPDamage))
}

func colorCommand(zoneName, color string) string {
	return fmt.Sprintf("zones.editcustomzone %q color (%s)", zoneName, strings.ReplaceAll(color, " ", ""))
}

func createCommand(z *domain.Zone) string {
	return fmt.Sprintf("zones.createcustomzone %q (%s) 0 %g %g %g",
		z.ZoneName, z.Position, z.Size, z.Size, z.Size)
}

func deleteCommand(zoneName string) string {
	return fmt.Sprintf("zones.deletecustomzone %q", zoneName)
}

const listCommand = "zones.listcustomzones"

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseZoneList extracts zone names from the list command's output.
// The plugin prints one zone per line as `Name [x, y, z] radius`; lines
// that do not look like that are ignored.
func parseZoneList(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Header lines like "Custom zones: 3" carry no bracket.
		if strings.HasSuffix(line, ":") || (strings.ContainsRune(line, ':') && !strings.ContainsRune(line, '[')) {
			continue
		}
		name := line
		if idx := strings.Index(line, " ["); idx > 0 {
			name = line[:idx]
		} else if idx := strings.IndexByte(line, ' '); idx > 0 {
			name = line[:idx]
		}
		name = strings.Trim(name, `"`)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}
