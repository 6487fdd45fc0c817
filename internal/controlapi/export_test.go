package controlapi

var ProxySubpath = proxySubpath
