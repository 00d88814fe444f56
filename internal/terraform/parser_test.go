package terraform

import (
	"reflect"
	"strings"
	"testing"

	"repomap/internal/logging"
)

func parse(t *testing.T, source string) *ParseResult {
	t.Helper()
	return NewParser(logging.Discard()).Parse("main.tf", []byte(source))
}

func TestParseResource(t *testing.T) {
	res := parse(t, `resource "aws_instance" "web" {
  ami           = "ami-12345"
  instance_type = var.instance_type
  subnet_id     = aws_subnet.main.id
}
`)

	if len(res.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(res.Resources))
	}
	r := res.Resources[0]
	if r.Type != "aws_instance" || r.Name != "web" {
		t.Errorf("identity wrong: %s.%s", r.Type, r.Name)
	}
	if r.ID() != "aws_instance.web" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Provider != "aws" {
		t.Errorf("Provider = %q, want aws (type prefix)", r.Provider)
	}
	if r.Line != 1 {
		t.Errorf("Line = %d, want 1", r.Line)
	}
	if r.Attributes["ami"] != "ami-12345" {
		t.Errorf("attributes wrong: %v", r.Attributes)
	}

	wantRefs := map[string]bool{"var.instance_type": true, "aws_subnet.main": true}
	for _, ref := range r.References {
		delete(wantRefs, ref)
	}
	if len(wantRefs) != 0 {
		t.Errorf("references missing: %v (got %v)", wantRefs, r.References)
	}
}

func TestParseExplicitProvider(t *testing.T) {
	res := parse(t, `resource "aws_instance" "replica" {
  provider = aws.secondary
}
`)
	if res.Resources[0].Provider != "aws.secondary" {
		t.Errorf("explicit provider not honored: %q", res.Resources[0].Provider)
	}
}

func TestParseDataBlock(t *testing.T) {
	res := parse(t, `data "aws_ami" "ubuntu" {
  most_recent = true
}
`)
	if len(res.Resources) != 1 {
		t.Fatalf("data block not extracted")
	}
	if res.Resources[0].ID() != "data.aws_ami.ubuntu" {
		t.Errorf("data id = %q, want data.aws_ami.ubuntu", res.Resources[0].ID())
	}
}

func TestParseDependsOn(t *testing.T) {
	res := parse(t, `resource "aws_instance" "app" {
  depends_on = [aws_security_group.allow_http, aws_iam_role.app]
}
`)
	got := res.Resources[0].Dependencies
	want := []string{"aws_security_group.allow_http", "aws_iam_role.app"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies = %v, want %v", got, want)
	}
	if _, ok := res.Resources[0].Attributes["depends_on"]; ok {
		t.Error("depends_on leaked into scalar attributes")
	}
}

func TestParseModule(t *testing.T) {
	res := parse(t, `module "networking" {
  source     = "./modules/networking"
  cidr_block = var.vpc_cidr
}
`)
	if len(res.Modules) != 1 {
		t.Fatalf("module not extracted")
	}
	m := res.Modules[0]
	if m.Name != "networking" || m.Source != "./modules/networking" {
		t.Errorf("module identity wrong: %+v", m)
	}
	if _, ok := m.Variables["source"]; ok {
		t.Error("source left in module variables")
	}
	if m.Variables["cidr_block"] != "var.vpc_cidr" {
		t.Errorf("module variables wrong: %v", m.Variables)
	}
}

func TestParseVariableAndOutput(t *testing.T) {
	res := parse(t, `variable "instance_type" {
  type        = string
  default     = "t3.micro"
  description = "EC2 instance size"
}

output "instance_ip" {
  value       = aws_instance.web.public_ip
  description = "Public address"
}
`)
	if len(res.Variables) != 1 {
		t.Fatalf("variable not extracted")
	}
	v := res.Variables[0]
	if v.Name != "instance_type" || v.Default != "t3.micro" {
		t.Errorf("variable wrong: %+v", v)
	}

	if len(res.Outputs) != 1 {
		t.Fatalf("output not extracted")
	}
	o := res.Outputs[0]
	if o.Name != "instance_ip" {
		t.Errorf("output name wrong: %q", o.Name)
	}
	found := false
	for _, ref := range o.References {
		if ref == "aws_instance.web" {
			found = true
		}
	}
	if !found {
		t.Errorf("output reference missing: %v", o.References)
	}
}

func TestParseProviderAndLocals(t *testing.T) {
	res := parse(t, `provider "aws" {
  region = "eu-west-1"
}

locals {
  common_tags = { Env = "prod" }
}

resource "aws_s3_bucket" "logs" {
  tags = local.common_tags
}
`)
	if len(res.Providers) != 1 || res.Providers[0] != "aws" {
		t.Errorf("provider not extracted: %v", res.Providers)
	}
	// Locals do not become nodes but references to them are still scanned.
	found := false
	for _, ref := range res.Resources[0].References {
		if ref == "local.common_tags" {
			found = true
		}
	}
	if !found {
		t.Errorf("local reference missing: %v", res.Resources[0].References)
	}
}

func TestExtractBlockBraceBalance(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantEnd int
	}{
		{
			"nested blocks",
			"resource \"a_b\" \"x\" {\n  lifecycle {\n    create_before_destroy = true\n  }\n}\nresource \"a_b\" \"y\" {\n}",
			4,
		},
		{
			"single line block",
			"locals { a = 1 }\nresource \"a_b\" \"z\" {\n}",
			0,
		},
		{
			"unbalanced runs to eof",
			"resource \"a_b\" \"w\" {\n  broken = true\n",
			2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := strings.Split(tt.source, "\n")
			_, end := extractBlock(lines, 0)
			if end != tt.wantEnd {
				t.Errorf("end = %d, want %d", end, tt.wantEnd)
			}
		})
	}
}

func TestNestedBlockDoesNotSplitResource(t *testing.T) {
	res := parse(t, `resource "aws_security_group" "web" {
  ingress {
    from_port = 80
    to_port   = 80
  }
  egress {
    from_port = 0
  }
}

resource "aws_instance" "web" {
  vpc_security_group_ids = [aws_security_group.web.id]
}
`)
	if len(res.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(res.Resources))
	}
}

func TestReferenceDedup(t *testing.T) {
	res := parse(t, `resource "aws_instance" "a" {
  one = var.size
  two = var.size
  three = "${var.size}-suffix"
}
`)
	count := 0
	for _, ref := range res.Resources[0].References {
		if ref == "var.size" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("var.size appears %d times, want 1", count)
	}
}

func TestMergeResults(t *testing.T) {
	a := parse(t, `provider "aws" {
  region = "eu-west-1"
}
resource "aws_vpc" "main" {
  cidr_block = "10.0.0.0/16"
}
`)
	b := parse(t, `provider "google" {
}
provider "aws" {
}
resource "google_storage_bucket" "assets" {
}
`)

	idx := MergeResults("run-1", "/repo", []*ParseResult{a, b, nil})
	if len(idx.Resources) != 2 {
		t.Errorf("resources not merged: %d", len(idx.Resources))
	}
	if !reflect.DeepEqual(idx.Providers, []string{"aws", "google"}) {
		t.Errorf("providers not deduped and sorted: %v", idx.Providers)
	}
	if idx.RunID != "run-1" {
		t.Errorf("RunID = %q", idx.RunID)
	}
}
