package preview

import (
	"strings"
	"testing"
)

func TestRender_Markdown(t *testing.T) {
	out := string(Render("# Stimuli\n\nA **constant** current."))
	for _, want := range []string{"<h1", "Stimuli</h1>", "<strong>constant</strong>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestRender_PreservesMath(t *testing.T) {
	out := string(Render("Initial membrane potential $V_{init}$ in mV."))
	if !strings.Contains(out, `class="math inline"`) {
		t.Fatalf("expected inline math wrapper in %s", out)
	}
	if !strings.Contains(out, "V_{init}") {
		t.Fatalf("expected raw LaTeX to survive in %s", out)
	}
}

func TestRender_DisplayMath(t *testing.T) {
	out := string(Render("$$\nI = C \\frac{dV}{dt}\n$$"))
	if !strings.Contains(out, `class="math display"`) {
		t.Fatalf("expected display math wrapper in %s", out)
	}
	if !strings.Contains(out, `\frac{dV}{dt}`) {
		t.Fatalf("expected raw LaTeX to survive in %s", out)
	}
}

func TestRender_Sanitizes(t *testing.T) {
	out := string(Render("hello <script>alert(1)</script> <span class=\"evil\" onclick=\"x()\">x</span>"))
	if strings.Contains(out, "<script") || strings.Contains(out, "onclick") || strings.Contains(out, "evil") {
		t.Fatalf("unsanitized output: %s", out)
	}
}

func TestRender_Empty(t *testing.T) {
	if out := Render("   "); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestInline_StripsParagraph(t *testing.T) {
	if got := string(Inline("plain *text*")); got != "plain <em>text</em>" {
		t.Fatalf("unexpected inline output %q", got)
	}
}
