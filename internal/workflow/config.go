package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"glowlight/tools/setup/internal/glowconfig"
	"glowlight/tools/setup/internal/glowerr"
	"glowlight/tools/setup/internal/progress"
	"glowlight/tools/setup/internal/prompt"
)

var (
	configChoices = []prompt.Choice{
		{ID: "create", Display: "Create New Configuration"},
		{ID: "modify", Display: "Modify Existing Configuration"},
		{ID: "view", Display: "View Current Configuration"},
		{ID: "backups", Display: "Backup Configuration"},
		{ID: "back", Display: "Return to Main Menu"},
	}

	modifyChoices = []prompt.Choice{
		{ID: "mesh", Display: "Modify Mesh Settings"},
		{ID: "pins", Display: "Modify GPIO Pins"},
		{ID: "full", Display: "Complete Reconfiguration"},
		{ID: "back", Display: "Return to Configuration Menu"},
	}

	backupChoices = []prompt.Choice{
		{ID: "create", Display: "Create New Backup"},
		{ID: "restore", Display: "View & Restore Backups"},
		{ID: "list", Display: "List All Backups"},
		{ID: "back", Display: "Back to Configuration Menu"},
	}
)

// pinHelp describes what each pin is wired to.
var pinHelp = map[string]string{
	glowconfig.KeyLEDData: "WS2812B LED strip data input",
	glowconfig.KeyButton:  "push button input with internal pull-up",
	glowconfig.KeySDA:     "I2C data line for VL53L0X sensor",
	glowconfig.KeySCL:     "I2C clock line for VL53L0X sensor",
}

// viewKeys are shown by the configuration viewer.
var viewKeys = []struct {
	key   string
	label string
}{
	{glowconfig.KeyLEDData, "LED Data Pin"},
	{"LED_NUM_LEDS", "Number of LEDs"},
	{glowconfig.KeyButton, "Button Pin"},
	{glowconfig.KeySDA, "Distance Sensor SDA"},
	{glowconfig.KeySCL, "Distance Sensor SCL"},
	{glowconfig.KeyMeshOn, "Mesh Networking"},
	{glowconfig.KeyMeshPrefix, "Mesh Network Name"},
}

func (a *App) configMenu(ctx context.Context) error {
	for {
		a.configStatus()

		choice, err := a.p.Menu("Configuration", configChoices)
		if err != nil {
			return back(err)
		}

		switch choice {
		case "create":
			err = a.CreateConfig(ctx)
		case "modify":
			err = a.modifyMenu(ctx)
		case "view":
			err = a.viewConfig()
		case "backups":
			err = a.backupMenu()
		case "back":
			return nil
		}

		if err := a.settle(err); err != nil {
			return err
		}
	}
}

func (a *App) configStatus() {
	status := func(ok bool, yes, no string) string {
		if ok {
			return "✓ " + yes
		}
		return "✗ " + no
	}
	a.p.Section("Configuration Status")
	a.p.Print("  GlowConfig.h:  %s\n", status(a.d.Config.Exists(), "exists", "missing"))
	a.p.Print("  Template:      %s\n", status(a.d.Config.TemplateExists(), "available", "missing"))
	if a.d.Config.Exists() {
		a.showPins(a.d.Config.CurrentPins())
	}
}

// CreateConfig copies the template into place (asking before overwriting) and walks
// through mesh and pin settings before applying them.
func (a *App) CreateConfig(ctx context.Context) error {
	a.p.Println("\n─── Step 1: Configuration File ───")
	result, err := a.d.Config.Create(false)
	if err != nil {
		return err
	}
	if result == glowconfig.CreateCancelled {
		overwrite, err := a.p.Confirm("GlowConfig.h already exists. Overwrite it? A backup is made first", false)
		if err != nil {
			return err
		}
		if !overwrite {
			return glowerr.New(glowerr.KindCancelled, errors.New("kept existing configuration"))
		}
		if result, err = a.d.Config.Create(true); err != nil {
			return err
		}
	}
	a.p.Print("  ✓ Configuration %s: %s\n", result, a.d.Config.ConfigPath)

	a.p.Println("\n─── Step 2: Mesh Configuration ───")
	mesh, err := a.askMesh(ctx, a.d.Config.CurrentMesh())
	if err != nil {
		return err
	}

	a.p.Println("\n─── Step 3: GPIO Pin Configuration ───")
	pins, err := a.askPins(a.d.Config.CurrentPins())
	if err != nil {
		return err
	}

	a.p.Println("\n─── Step 4: Applying Configuration ───")
	if err := a.apply(&mesh, &pins); err != nil {
		return err
	}
	a.p.Println("  Your GlowLight is configured and ready to build!")
	return nil
}

func (a *App) modifyMenu(ctx context.Context) error {
	if _, err := a.d.Config.Read(); err != nil {
		return err
	}

	for {
		choice, err := a.p.Menu("Modify Configuration", modifyChoices)
		if err != nil {
			return back(err)
		}

		switch choice {
		case "mesh":
			var mesh glowconfig.MeshSettings
			if mesh, err = a.askMesh(ctx, a.d.Config.CurrentMesh()); err == nil {
				err = a.apply(&mesh, nil)
			}
		case "pins":
			var pins glowconfig.PinAssignment
			if pins, err = a.askPins(a.d.Config.CurrentPins()); err == nil {
				err = a.apply(nil, &pins)
			}
		case "full":
			return a.CreateConfig(ctx)
		case "back":
			return nil
		}

		if err := a.settle(err); err != nil {
			return err
		}
	}
}

func (a *App) apply(mesh *glowconfig.MeshSettings, pins *glowconfig.PinAssignment) error {
	if err := a.d.Config.Apply(mesh, pins); err != nil {
		return err
	}
	a.p.Print("  ✓ Configuration saved to %s\n", a.d.Config.ConfigPath)
	return nil
}

// ApplyValues validates and writes mesh and pin settings without prompting. Reserved
// pins are accepted only with allowReserved. An enabled mesh without a password takes
// it from the configured secret.
func (a *App) ApplyValues(ctx context.Context, mesh *glowconfig.MeshSettings, pins *glowconfig.PinAssignment, allowReserved bool) error {
	if mesh != nil {
		if mesh.Enabled && mesh.Password == "" && a.secretName() != "" {
			pw, err := a.meshPassword(ctx)
			if err != nil {
				return err
			}
			mesh.Password = pw
		}
		if err := glowconfig.ValidateMesh(*mesh); err != nil {
			return err
		}
	}
	if pins != nil {
		if err := glowconfig.ValidatePinSet(*pins, func(string, int) bool { return allowReserved }); err != nil {
			return err
		}
		if !glowconfig.I2CRecommended(pins.SDA, pins.SCL) {
			a.p.Println("  ⚠ SDA/SCL outside GPIO 4-10, check the sensor wiring")
		}
	}
	return a.apply(mesh, pins)
}

// CurrentPins returns the pins of the live configuration.
func (a *App) CurrentPins() (glowconfig.PinAssignment, error) {
	if _, err := a.d.Config.Read(); err != nil {
		return glowconfig.PinAssignment{}, err
	}
	return a.d.Config.CurrentPins(), nil
}

// CurrentMesh returns the mesh settings of the live configuration.
func (a *App) CurrentMesh() (glowconfig.MeshSettings, error) {
	if _, err := a.d.Config.Read(); err != nil {
		return glowconfig.MeshSettings{}, err
	}
	return a.d.Config.CurrentMesh(), nil
}

func (a *App) askMesh(ctx context.Context, cur glowconfig.MeshSettings) (glowconfig.MeshSettings, error) {
	a.p.Println("The GlowLight supports mesh networking between multiple lamps.")
	a.p.Println("Lamps in the same mesh synchronize modes and effects.")

	enabled, err := a.p.Confirm("Enable mesh networking?", cur.Enabled)
	if err != nil {
		return cur, err
	}
	m := glowconfig.MeshSettings{Enabled: enabled, Name: cur.Name, Password: cur.Password}
	if !enabled {
		a.p.Println("  Mesh networking disabled")
		return m, nil
	}

	defName := cur.Name
	if defName == "" || defName == glowconfig.DefaultMeshName {
		defName = a.d.Settings.Mesh.DefaultName
	}

	var secret string
	if a.secretName() != "" {
		if secret, err = a.meshPassword(ctx); err != nil {
			return m, err
		}
		if utf8.RuneCountInString(secret) < glowconfig.MinMeshPasswordLen {
			return m, glowerr.Errorf(glowerr.KindValidation,
				"mesh password from %s must be at least %d characters", a.secretName(), glowconfig.MinMeshPasswordLen)
		}
	}

	for {
		if m.Name, err = a.p.Ask("Mesh network name (SSID)", defName); err != nil {
			return m, err
		}

		if secret != "" {
			m.Password = secret
			a.p.Println("  ✓ Mesh password loaded from Secret Manager")
		} else {
			label := fmt.Sprintf("Mesh network password (min %d characters)", glowconfig.MinMeshPasswordLen)
			if cur.Password != "" {
				label += ", Enter keeps the current one"
			}
			pw, err := a.p.Password(label)
			if err != nil {
				return m, err
			}
			if pw == "" {
				pw = cur.Password
			}
			m.Password = pw
		}

		if err := glowconfig.ValidateMesh(m); err != nil {
			a.p.Print("  ✗ %v\n", err)
			continue
		}
		a.p.Print("  ✓ Mesh configured: %s\n", m.Name)
		return m, nil
	}
}

func (a *App) secretName() string {
	if a.d.Secrets == nil {
		return ""
	}
	return a.d.Settings.Mesh.PasswordSecret
}

func (a *App) meshPassword(ctx context.Context) (string, error) {
	var pw string
	err := a.withInterrupt(ctx, func(ctx context.Context) error {
		return progress.Spin(a.p.Writer(), "Fetching mesh password from Secret Manager", func() error {
			var err error
			pw, err = a.d.Secrets.Access(ctx, a.secretName())
			return err
		})
	})
	return pw, err
}

func (a *App) askPins(cur glowconfig.PinAssignment) (glowconfig.PinAssignment, error) {
	a.p.Println("Configure GPIO pins for your hardware. Press Enter to keep the value in brackets.")
	a.showPins(cur)

	for {
		pins := cur
		consent := make(map[string]bool)
		for _, pin := range cur.Map() {
			v, err := a.askPin(pin.Name, pin.Value, consent)
			if err != nil {
				return cur, err
			}
			pins.Set(pin.Name, v)
		}

		if !glowconfig.I2CRecommended(pins.SDA, pins.SCL) {
			a.p.Println("  ⚠ SDA/SCL outside GPIO 4-10, check the sensor wiring")
		}

		err := glowconfig.ValidatePinSet(pins, func(name string, _ int) bool { return consent[name] })
		if err != nil {
			a.p.Print("  ✗ %v\n", err)
			again, cerr := a.p.Confirm("Enter the pins again?", true)
			if cerr != nil {
				return cur, cerr
			}
			if !again {
				return cur, err
			}
			continue
		}

		a.p.Println("\nFinal pin configuration:")
		a.showPins(pins)
		ok, err := a.p.Confirm("Accept this pin configuration?", true)
		if err != nil {
			return cur, err
		}
		if !ok {
			return cur, glowerr.New(glowerr.KindCancelled, errors.New("pin configuration not accepted"))
		}
		return pins, nil
	}
}

// askPin repeats until the pin is in range. A reserved pin needs explicit consent,
// which is recorded in consent under the pin's name.
func (a *App) askPin(name string, def int, consent map[string]bool) (int, error) {
	for {
		v, err := a.p.AskInt(fmt.Sprintf("%s (%s)", glowconfig.Label(name), pinHelp[name]), def)
		if err != nil {
			return 0, err
		}
		if !glowconfig.PinInRange(v) {
			a.p.Print("  ✗ GPIO %d is out of range (%d-%d)\n", v, glowconfig.MinPin, glowconfig.MaxPin)
			continue
		}
		if glowconfig.PinIsReserved(v) {
			ok, err := a.p.Confirm(fmt.Sprintf("GPIO %d is reserved for boot and flash. Use it anyway?", v), false)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			consent[name] = true
		}
		return v, nil
	}
}

func (a *App) showPins(p glowconfig.PinAssignment) {
	for _, pin := range p.Map() {
		a.p.Print("    %-20s GPIO %d\n", glowconfig.Label(pin.Name)+":", pin.Value)
	}
}

func (a *App) viewConfig() error {
	doc, err := a.ShowConfig(false)
	if err != nil {
		return err
	}
	full, err := a.p.Confirm("View complete configuration file?", false)
	if err != nil || !full {
		return err
	}
	a.printDocument(doc)
	return nil
}

// ShowConfig prints the key configuration values, and the whole file when full is set.
func (a *App) ShowConfig(full bool) (glowconfig.Document, error) {
	doc, err := a.d.Config.Read()
	if err != nil {
		return "", err
	}

	a.p.Section("Current Configuration")
	for _, k := range viewKeys {
		v, ok := glowconfig.Lookup(doc, k.key)
		if !ok {
			v = "(not found)"
		}
		a.p.Print("  %-22s %s\n", k.label+":", v)
	}
	if full {
		a.printDocument(doc)
	}
	return doc, nil
}

func (a *App) printDocument(doc glowconfig.Document) {
	rule := strings.Repeat("=", 60)
	a.p.Println(rule)
	a.p.Println(strings.TrimRight(string(doc), "\n"))
	a.p.Println(rule)
}

func (a *App) backupMenu() error {
	for {
		choice, err := a.p.Menu("Backups", backupChoices)
		if err != nil {
			return back(err)
		}

		switch choice {
		case "create":
			_, err = a.CreateBackup()
		case "restore":
			err = a.restoreBackup()
		case "list":
			err = a.ListBackups(0)
		case "back":
			return nil
		}

		if err := a.settle(err); err != nil {
			return err
		}
	}
}

// CreateBackup snapshots the live configuration.
func (a *App) CreateBackup() (string, error) {
	id, err := a.d.Backups.Snapshot()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", glowerr.WithHints(
			glowerr.Errorf(glowerr.KindConfigMissing, "no configuration to back up: %s", a.d.Config.ConfigPath),
			"Create a new configuration first",
		)
	}
	a.p.Print("  ✓ Backup created: %s\n", id)
	a.p.Print("  Backups are stored in: %s\n", a.d.Backups.Dir())
	return id, nil
}

// ListBackups prints up to limit backups, newest first. limit <= 0 lists all.
func (a *App) ListBackups(limit int) error {
	list, err := a.d.Backups.List(limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.p.Print("  No backups in %s\n", a.d.Backups.Dir())
		return nil
	}

	a.p.Section(fmt.Sprintf("Backups (%d)", len(list)))
	for i, b := range list {
		a.p.Print("  %2d. %-19s %7d bytes  %s\n", i+1, b.Label(), b.Size, b.ID)
	}
	return nil
}

// RestoreBackup replaces the live configuration with backup id.
func (a *App) RestoreBackup(id string) error {
	if err := a.d.Backups.Restore(id); err != nil {
		return err
	}
	a.p.Print("  ✓ Restored %s\n", id)
	return nil
}

func (a *App) restoreBackup() error {
	list, err := a.d.Backups.List(a.d.Settings.BackupListLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return glowerr.Errorf(glowerr.KindNotFound, "no backups found in %s", a.d.Backups.Dir())
	}

	choices := make([]prompt.Choice, 0, len(list)+1)
	for _, b := range list {
		choices = append(choices, prompt.Choice{ID: b.ID, Display: b.Label()})
	}
	choices = append(choices, prompt.Choice{ID: "", Display: "Back"})

	id, err := a.p.Menu("Recent Backups", choices)
	if err != nil || id == "" {
		return back(err)
	}

	data, err := a.d.Backups.Read(id)
	if err != nil {
		return err
	}
	a.p.Section(id)
	doc := glowconfig.Document(data)
	for _, key := range glowconfig.RequiredKeys() {
		if key == glowconfig.KeyMeshPassword {
			continue
		}
		if v, ok := glowconfig.Lookup(doc, key); ok {
			a.p.Print("  %-22s %s\n", key+":", v)
		}
	}

	ok, err := a.p.Confirm("Restore this backup? The current configuration is backed up first", false)
	if err != nil {
		return err
	}
	if !ok {
		return glowerr.New(glowerr.KindCancelled, errors.New("restore cancelled"))
	}
	return a.RestoreBackup(id)
}
