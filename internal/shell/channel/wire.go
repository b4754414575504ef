package channel

import "encoding/xml"

// Namespace is the XML namespace of every management API document.
const Namespace = "http://schemas.microsoft.com/windowsazure"

// APIVersion is sent in the x-ms-version header of every request.
const APIVersion = "2012-03-01"

// Header names shared by the client and the emulator.
const (
	HeaderVersion         = "x-ms-version"
	HeaderRequestID       = "x-ms-request-id"
	HeaderClientRequestID = "x-ms-client-request-id"
)

// =============================================================================
// Hosted Services
// =============================================================================

type HostedServiceXML struct {
	XMLName     xml.Name                   `xml:"http://schemas.microsoft.com/windowsazure HostedService"`
	URL         string                     `xml:"Url,omitempty"`
	ServiceName string                     `xml:"ServiceName"`
	Properties  HostedServicePropertiesXML `xml:"HostedServiceProperties"`
}

type HostedServicesXML struct {
	XMLName  xml.Name           `xml:"http://schemas.microsoft.com/windowsazure HostedServices"`
	Services []HostedServiceXML `xml:"HostedService"`
}

type HostedServicePropertiesXML struct {
	Description   string `xml:"Description,omitempty"`
	Location      string `xml:"Location,omitempty"`
	AffinityGroup string `xml:"AffinityGroup,omitempty"`
	Label         string `xml:"Label"`
	Status        string `xml:"Status,omitempty"`
}

type CreateHostedServiceXML struct {
	XMLName       xml.Name `xml:"http://schemas.microsoft.com/windowsazure CreateHostedService"`
	ServiceName   string   `xml:"ServiceName"`
	Label         string   `xml:"Label"`
	Description   string   `xml:"Description,omitempty"`
	Location      string   `xml:"Location,omitempty"`
	AffinityGroup string   `xml:"AffinityGroup,omitempty"`
}

// =============================================================================
// Storage Services
// =============================================================================

type StorageServiceXML struct {
	XMLName     xml.Name                    `xml:"http://schemas.microsoft.com/windowsazure StorageService"`
	URL         string                      `xml:"Url,omitempty"`
	ServiceName string                      `xml:"ServiceName"`
	Properties  StorageServicePropertiesXML `xml:"StorageServiceProperties"`
}

type StorageServicePropertiesXML struct {
	Label     string   `xml:"Label"`
	Location  string   `xml:"Location,omitempty"`
	Status    string   `xml:"Status,omitempty"`
	Endpoints []string `xml:"Endpoints>Endpoint"`
}

type CreateStorageServiceXML struct {
	XMLName       xml.Name `xml:"http://schemas.microsoft.com/windowsazure CreateStorageServiceInput"`
	ServiceName   string   `xml:"ServiceName"`
	Label         string   `xml:"Label"`
	Location      string   `xml:"Location,omitempty"`
	AffinityGroup string   `xml:"AffinityGroup,omitempty"`
}

type StorageServiceKeysXML struct {
	XMLName   xml.Name `xml:"http://schemas.microsoft.com/windowsazure StorageService"`
	URL       string   `xml:"Url,omitempty"`
	Endpoint  string   `xml:"StorageServiceKeys>Endpoint"`
	Region    string   `xml:"StorageServiceKeys>Region,omitempty"`
	Primary   string   `xml:"StorageServiceKeys>Primary"`
	Secondary string   `xml:"StorageServiceKeys>Secondary"`
}

// =============================================================================
// Certificates and Extensions
// =============================================================================

type CertificatesXML struct {
	XMLName      xml.Name         `xml:"http://schemas.microsoft.com/windowsazure Certificates"`
	Certificates []CertificateXML `xml:"Certificate"`
}

type CertificateXML struct {
	CertificateURL      string `xml:"CertificateUrl,omitempty"`
	Thumbprint          string `xml:"Thumbprint"`
	ThumbprintAlgorithm string `xml:"ThumbprintAlgorithm"`
	Data                string `xml:"Data,omitempty"`
}

type CertificateFileXML struct {
	XMLName           xml.Name `xml:"http://schemas.microsoft.com/windowsazure CertificateFile"`
	Data              string   `xml:"Data"`
	CertificateFormat string   `xml:"CertificateFormat"`
	Password          string   `xml:"Password,omitempty"`
}

type ExtensionXML struct {
	XMLName              xml.Name `xml:"http://schemas.microsoft.com/windowsazure Extension"`
	ProviderNamespace    string   `xml:"ProviderNameSpace"`
	Type                 string   `xml:"Type"`
	ID                   string   `xml:"Id"`
	Thumbprint           string   `xml:"Thumbprint,omitempty"`
	PublicConfiguration  string   `xml:"PublicConfiguration,omitempty"`
	PrivateConfiguration string   `xml:"PrivateConfiguration,omitempty"`
	Version              string   `xml:"Version,omitempty"`
}

// =============================================================================
// Deployments
// =============================================================================

type ExtensionConfigurationXML struct {
	AllRoles []ExtensionRefXML `xml:"AllRoles>Extension"`
}

type ExtensionRefXML struct {
	ID string `xml:"Id"`
}

type CreateDeploymentXML struct {
	XMLName                xml.Name                   `xml:"http://schemas.microsoft.com/windowsazure CreateDeployment"`
	Name                   string                     `xml:"Name"`
	PackageURL             string                     `xml:"PackageUrl"`
	Label                  string                     `xml:"Label"`
	Configuration          string                     `xml:"Configuration"`
	StartDeployment        bool                       `xml:"StartDeployment"`
	TreatWarningsAsError   bool                       `xml:"TreatWarningsAsError"`
	ExtensionConfiguration *ExtensionConfigurationXML `xml:"ExtensionConfiguration,omitempty"`
}

type UpgradeDeploymentXML struct {
	XMLName                xml.Name                   `xml:"http://schemas.microsoft.com/windowsazure UpgradeDeployment"`
	Mode                   string                     `xml:"Mode"`
	PackageURL             string                     `xml:"PackageUrl"`
	Configuration          string                     `xml:"Configuration"`
	Label                  string                     `xml:"Label"`
	Force                  bool                       `xml:"Force"`
	ExtensionConfiguration *ExtensionConfigurationXML `xml:"ExtensionConfiguration,omitempty"`
}

type UpdateDeploymentStatusXML struct {
	XMLName xml.Name `xml:"http://schemas.microsoft.com/windowsazure UpdateDeploymentStatus"`
	Status  string   `xml:"Status"`
}

type DeploymentXML struct {
	XMLName        xml.Name          `xml:"http://schemas.microsoft.com/windowsazure Deployment"`
	Name           string            `xml:"Name"`
	DeploymentSlot string            `xml:"DeploymentSlot"`
	PrivateID      string            `xml:"PrivateID,omitempty"`
	Status         string            `xml:"Status"`
	Label          string            `xml:"Label"`
	URL            string            `xml:"Url"`
	Configuration  string            `xml:"Configuration,omitempty"`
	RoleInstances  []RoleInstanceXML `xml:"RoleInstanceList>RoleInstance"`
}

type RoleInstanceXML struct {
	RoleName       string `xml:"RoleName"`
	InstanceName   string `xml:"InstanceName"`
	InstanceStatus string `xml:"InstanceStatus"`
}

// =============================================================================
// Operations and Errors
// =============================================================================

type OperationXML struct {
	XMLName        xml.Name           `xml:"http://schemas.microsoft.com/windowsazure Operation"`
	ID             string             `xml:"ID"`
	Status         string             `xml:"Status"`
	HTTPStatusCode int                `xml:"HttpStatusCode"`
	Error          *OperationErrorXML `xml:"Error,omitempty"`
}

type OperationErrorXML struct {
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

type ErrorXML struct {
	XMLName xml.Name `xml:"http://schemas.microsoft.com/windowsazure Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}
