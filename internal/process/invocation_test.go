package process

import (
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Table-Driven Tests: ClasspathSeparator
// =============================================================================

func TestClasspathSeparator(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"windows", ";"},
		{"linux", ":"},
		{"darwin", ":"},
		{"freebsd", ":"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			if got := ClasspathSeparator(tt.goos); got != tt.want {
				t.Errorf("ClasspathSeparator(%q) = %q, want %q", tt.goos, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Table-Driven Tests: Invocation.ArgsFor
// =============================================================================

func TestInvocation_ArgsFor(t *testing.T) {
	tests := []struct {
		name string
		inv  Invocation
		goos string
		want []string
	}{
		{
			name: "jar_no_args",
			inv: Invocation{
				Executable: "java",
				Mode:       DirectArtifact{Path: "/app/build/scenario_editor.jar"},
			},
			goos: "linux",
			want: []string{"-jar", "/app/build/scenario_editor.jar"},
		},
		{
			name: "jar_with_module_flags",
			inv: Invocation{
				Executable:   "java",
				RuntimeFlags: []string{"--module-path", "/fx/lib", "--add-modules", "javafx.controls"},
				Mode:         DirectArtifact{Path: "editor.jar"},
				Arguments:    []string{"/data/s.json"},
			},
			goos: "linux",
			want: []string{"--module-path", "/fx/lib", "--add-modules", "javafx.controls", "-jar", "editor.jar", "/data/s.json"},
		},
		{
			name: "classpath_unix",
			inv: Invocation{
				Executable: "java",
				Mode:       Classpath{Entries: []string{"p.jar", "a.jar", "b.jar"}, EntrySymbol: "ScenarioPlayer"},
				Arguments:  []string{"/data/s.json", "test"},
			},
			goos: "linux",
			want: []string{"-cp", "p.jar:a.jar:b.jar", "ScenarioPlayer", "/data/s.json", "test"},
		},
		{
			name: "classpath_windows",
			inv: Invocation{
				Executable: "java",
				Mode:       Classpath{Entries: []string{`C:\p.jar`, `C:\a.jar`}, EntrySymbol: "ScenarioPlayer"},
				Arguments:  []string{`C:\s.json`, "practice"},
			},
			goos: "windows",
			want: []string{"-cp", `C:\p.jar;C:\a.jar`, "ScenarioPlayer", `C:\s.json`, "practice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.inv.ArgsFor(tt.goos)
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("ArgsFor(%q) = %v, want %v", tt.goos, got, tt.want)
			}
		})
	}
}

func TestInvocation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		inv     Invocation
		wantErr string
	}{
		{"valid_jar", Invocation{Executable: "java", Mode: DirectArtifact{Path: "x.jar"}}, ""},
		{"valid_classpath", Invocation{Executable: "java", Mode: Classpath{Entries: []string{"x.jar"}, EntrySymbol: "Main"}}, ""},
		{"no_executable", Invocation{Mode: DirectArtifact{Path: "x.jar"}}, "executable"},
		{"no_mode", Invocation{Executable: "java"}, "mode"},
		{"empty_jar", Invocation{Executable: "java", Mode: DirectArtifact{}}, "artifact path"},
		{"empty_classpath", Invocation{Executable: "java", Mode: Classpath{EntrySymbol: "Main"}}, "no entries"},
		{"no_symbol", Invocation{Executable: "java", Mode: Classpath{Entries: []string{"x.jar"}}}, "entry symbol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.inv.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestInvocation_CommandString(t *testing.T) {
	inv := Invocation{
		Executable: "java",
		Mode:       DirectArtifact{Path: "editor.jar"},
	}
	if got := inv.CommandString(); got != "java -jar editor.jar" {
		t.Errorf("CommandString() = %q", got)
	}
}

func TestMode_Name(t *testing.T) {
	if got := (DirectArtifact{}).Name(); got != "jar" {
		t.Errorf("DirectArtifact.Name() = %q", got)
	}
	if got := (Classpath{}).Name(); got != "classpath" {
		t.Errorf("Classpath.Name() = %q", got)
	}
}

// =============================================================================
// JavaConfig
// =============================================================================

func TestJavaConfig_RuntimeFlags(t *testing.T) {
	t.Run("no_module_path", func(t *testing.T) {
		c := DefaultJavaConfig()
		if flags := c.RuntimeFlags(EditorModules); flags != nil {
			t.Errorf("RuntimeFlags() = %v, want nil", flags)
		}
	})

	t.Run("editor_modules", func(t *testing.T) {
		c := &JavaConfig{RuntimePath: "java", ModulePath: "/opt/javafx/lib"}
		got := strings.Join(c.RuntimeFlags(EditorModules), " ")
		want := "--module-path /opt/javafx/lib --add-modules javafx.controls,javafx.fxml,javafx.graphics"
		if got != want {
			t.Errorf("RuntimeFlags() = %q, want %q", got, want)
		}
	})

	t.Run("player_adds_media", func(t *testing.T) {
		c := &JavaConfig{RuntimePath: "java", ModulePath: "/opt/javafx/lib"}
		got := c.RuntimeFlags(PlayerModules)
		if got[3] != "javafx.controls,javafx.fxml,javafx.graphics,javafx.media" {
			t.Errorf("player modules = %q", got[3])
		}
	})
}

func TestJavaConfig_Build(t *testing.T) {
	c := &JavaConfig{RuntimePath: "/usr/bin/java"}
	args := []string{"/data/s.json", "test"}
	inv := c.Build(PlayerModules, DirectArtifact{Path: "p.jar"}, args...)

	if inv.Executable != "/usr/bin/java" {
		t.Errorf("Executable = %q", inv.Executable)
	}
	if len(inv.Arguments) != 2 || inv.Arguments[1] != "test" {
		t.Errorf("Arguments = %v", inv.Arguments)
	}

	// Arguments must be copied
	args[1] = "practice"
	if inv.Arguments[1] != "test" {
		t.Error("Build should copy arguments")
	}
}

// =============================================================================
// DetachedRunner
// =============================================================================

func TestDetachedRunner_BuildCommand(t *testing.T) {
	r := NewDetachedRunner()
	if r.Name() != "detached" {
		t.Errorf("Name() = %q", r.Name())
	}

	inv := &Invocation{
		Executable: "java",
		Mode:       Classpath{Entries: []string{"a.jar", "b.jar"}, EntrySymbol: "ScenarioEditor"},
	}
	cmd, err := r.BuildCommand(inv)
	if err != nil {
		t.Fatalf("BuildCommand() error = %v", err)
	}
	if cmd.SysProcAttr == nil {
		t.Error("command should carry detach attributes")
	}

	sep := ClasspathSeparator(runtime.GOOS)
	if cmd.Args[2] != "a.jar"+sep+"b.jar" {
		t.Errorf("classpath arg = %q", cmd.Args[2])
	}
}

func TestDetachedRunner_RejectsInvalid(t *testing.T) {
	r := NewDetachedRunner()
	if _, err := r.BuildCommand(nil); err == nil {
		t.Error("BuildCommand(nil) should fail")
	}
	if _, err := r.BuildCommand(&Invocation{Executable: "java"}); err == nil {
		t.Error("BuildCommand without mode should fail")
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Error("ExitCode(nil) should be 0")
	}
	if ExitCode(errors.New("boom")) != -1 {
		t.Error("ExitCode(non-exit error) should be -1")
	}

	if runtime.GOOS == "windows" {
		return
	}
	err := exec.Command("/bin/sh", "-c", "exit 3").Run()
	if got := ExitCode(err); got != 3 {
		t.Errorf("ExitCode() = %d, want 3", got)
	}
}

func TestResult_Lifetime(t *testing.T) {
	start := time.Now()
	r := Result{StartTime: start}
	if r.Lifetime() != 0 {
		t.Error("running child should report zero lifetime")
	}
	r.EndTime = start.Add(3 * time.Second)
	if r.Lifetime() != 3*time.Second {
		t.Errorf("Lifetime() = %v", r.Lifetime())
	}
}
